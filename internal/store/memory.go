package store

import (
	"context"
	"sync"
)

// MemorySource implements Source over rows held in memory. Used for testing
// and fixtures.
type MemorySource struct {
	mu     sync.RWMutex
	header []string
	rows   [][]string
}

// NewMemorySource creates a source with the given header and rows.
func NewMemorySource(header []string, rows [][]string) *MemorySource {
	return &MemorySource{header: header, rows: rows}
}

// Append adds a row. Rows already being iterated are unaffected.
func (s *MemorySource) Append(row []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

func (s *MemorySource) Name() string { return "memory" }

func (s *MemorySource) Open(_ context.Context, columns []string) (Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions, err := columnPositions(s.Name(), s.header, columns)
	if err != nil {
		return nil, err
	}
	snapshot := make([][]string, len(s.rows))
	copy(snapshot, s.rows)
	return &memoryRows{rows: snapshot, positions: positions, pos: -1, buf: make([]string, len(columns))}, nil
}

type memoryRows struct {
	rows      [][]string
	positions []int
	pos       int
	buf       []string
}

func (r *memoryRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *memoryRows) Record() []string {
	row := r.rows[r.pos]
	for i, p := range r.positions {
		if p < len(row) {
			r.buf[i] = row[p]
		} else {
			r.buf[i] = ""
		}
	}
	return r.buf
}

func (r *memoryRows) Err() error   { return nil }
func (r *memoryRows) Close() error { return nil }
