package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tradelens/analytics-engine/internal/metrics"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Dashboard *DashboardResponse `json:"dashboard,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Message types.
const (
	MsgSession   = "session"
	MsgDashboard = "dashboard"
	MsgError     = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// session is one connected client. gorilla/websocket allows a single
// concurrent writer, so every write goes through mu.
type session struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *session) write(msg WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *session) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
// The server greets with a session message, then answers every Selection
// the client sends with the recomputed dashboard.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	s := &session{id: uuid.New().String(), conn: conn}

	metrics.WebSocketSessions.Inc()
	slog.Info("ws session opened", "session", s.id)

	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		metrics.WebSocketSessions.Dec()
		slog.Info("ws session closed", "session", s.id)
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := s.ping(); err != nil {
					return
				}
			}
		}
	}()

	if err := s.write(WSMessage{Type: MsgSession, SessionID: s.id}); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The session outlives any request timeout set by middleware.
	ctx := context.WithoutCancel(r.Context())
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("ws read failed", "session", s.id, "err", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var sel Selection
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&sel); err != nil {
			if err := s.write(WSMessage{Type: MsgError, SessionID: s.id, Error: "invalid selection"}); err != nil {
				return
			}
			continue
		}

		spec := sel.Spec()
		resp := newDashboardResponse(spec, h.svc.Dashboard(ctx, spec))
		if err := s.write(WSMessage{Type: MsgDashboard, SessionID: s.id, Dashboard: &resp}); err != nil {
			return
		}
	}
}
