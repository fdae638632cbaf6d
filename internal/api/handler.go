// Package api exposes the trade dashboard over HTTP.
//
// Every endpoint accepts the same loosely typed selection (years, countries,
// level, products) and normalizes it before it reaches the engine, so user
// input can never make a request fail.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradelens/analytics-engine/internal/cache"
	"github.com/tradelens/analytics-engine/internal/codeindex"
	"github.com/tradelens/analytics-engine/internal/engine"
	"github.com/tradelens/analytics-engine/internal/filter"
	"github.com/tradelens/analytics-engine/internal/format"
	"github.com/tradelens/analytics-engine/internal/metrics"
	"github.com/tradelens/analytics-engine/internal/model"
)

// Handler serves the dashboard endpoints.
type Handler struct {
	svc   *cache.Service
	index *codeindex.Index
}

// NewHandler creates a handler over a cached engine and its code index.
func NewHandler(svc *cache.Service, index *codeindex.Index) *Handler {
	return &Handler{svc: svc, index: index}
}

// RequestTimeout bounds every endpoint except the WebSocket session.
const RequestTimeout = 30 * time.Second

// Routes mounts the API under the current router.
func (h *Handler) Routes(r chi.Router) {
	// WebSocket endpoint for live dashboard sessions.
	r.Get("/ws", h.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))

		r.Get("/dashboard", h.GetDashboard)
		r.Post("/dashboard", h.PostDashboard)

		// Selector options.
		r.Get("/codes/{level}", h.GetCodes)
		r.Get("/years", h.GetYears)
		r.Get("/countries", h.GetCountries)

		// Secondary views.
		r.Get("/treemap", h.GetTreemap)
		r.Get("/country-products", h.GetCountryProducts)
		r.Get("/product-trend", h.GetProductTrend)
		r.Get("/sankey", h.GetSankey)
	})
}

// --- Request/Response types ---

// Selection is the JSON body of POST /dashboard and of WebSocket messages.
// Fields are deliberately untyped: years may arrive as numbers or strings,
// a single value may replace a list, and the level may be 6, "6" or "HS6".
type Selection struct {
	Years     any `json:"years"`
	Countries any `json:"countries"`
	Level     any `json:"level"`
	Products  any `json:"products"`
}

// Spec normalizes the selection.
func (s Selection) Spec() model.FilterSpec {
	return filter.Normalize(s.Years, s.Countries, s.Level, s.Products)
}

// DashboardResponse is the aggregate result plus display strings.
type DashboardResponse struct {
	model.AggregateResult
	Filter    model.FilterSpec `json:"filter"`
	Countries string           `json:"countries_label"`
	Display   KPIDisplay       `json:"display"`
}

// KPIDisplay holds the KPI cards as the dashboard prints them.
type KPIDisplay struct {
	Exports string `json:"exports"`
	Imports string `json:"imports"`
	Balance string `json:"balance"`
	Volume  string `json:"volume"`
}

// YearsResponse describes the year range of the dataset.
type YearsResponse struct {
	Min   int   `json:"min"`
	Max   int   `json:"max"`
	Years []int `json:"years"`
}

func newDashboardResponse(spec model.FilterSpec, res model.AggregateResult) DashboardResponse {
	return DashboardResponse{
		AggregateResult: res,
		Filter:          spec,
		Countries:       format.Countries(spec.Countries),
		Display: KPIDisplay{
			Exports: format.Human(res.KPIs.Exports),
			Imports: format.Human(res.KPIs.Imports),
			Balance: format.Human(res.KPIs.Balance),
			Volume:  format.Human(res.KPIs.Volume),
		},
	}
}

// --- HTTP Handlers ---

// GetDashboard handles GET /api/v1/dashboard?year=&country=&level=&product=
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	spec := querySpec(r)
	writeJSON(w, newDashboardResponse(spec, h.svc.Dashboard(r.Context(), spec)))
}

// PostDashboard handles POST /api/v1/dashboard with a Selection body.
func (h *Handler) PostDashboard(w http.ResponseWriter, r *http.Request) {
	sel, err := decodeSelection(r)
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	spec := sel.Spec()
	writeJSON(w, newDashboardResponse(spec, h.svc.Dashboard(r.Context(), spec)))
}

// GetCodes handles GET /api/v1/codes/{level}
// An unknown level falls back to the default level.
func (h *Handler) GetCodes(w http.ResponseWriter, r *http.Request) {
	level := filter.Level(chi.URLParam(r, "level"))
	codes := h.index.CodesAtLevel(level)
	if codes == nil {
		codes = []model.CodeEntry{}
	}
	writeJSON(w, codes)
}

// GetYears handles GET /api/v1/years
func (h *Handler) GetYears(w http.ResponseWriter, _ *http.Request) {
	ds := h.svc.Engine().Dataset()
	min, max, _ := ds.YearRange()
	years := ds.Years()
	if years == nil {
		years = []int{}
	}
	writeJSON(w, YearsResponse{Min: min, Max: max, Years: years})
}

// GetCountries handles GET /api/v1/countries
func (h *Handler) GetCountries(w http.ResponseWriter, _ *http.Request) {
	countries := h.svc.Engine().Dataset().Countries()
	if countries == nil {
		countries = []string{}
	}
	writeJSON(w, countries)
}

// GetTreemap handles GET /api/v1/treemap
func (h *Handler) GetTreemap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	nodes := h.svc.Engine().Treemap(querySpec(r))
	metrics.ObserveAggregation("treemap", start)
	if nodes == nil {
		nodes = []model.TreemapNode{}
	}
	writeJSON(w, nodes)
}

// GetCountryProducts handles GET /api/v1/country-products?top=
func (h *Handler) GetCountryProducts(w http.ResponseWriter, r *http.Request) {
	topN := engine.DefaultTopN
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "top must be a positive integer", http.StatusBadRequest)
			return
		}
		topN = n
	}
	start := time.Now()
	out := h.svc.Engine().CountryProducts(querySpec(r), topN)
	metrics.ObserveAggregation("country_products", start)
	writeJSON(w, out)
}

// GetProductTrend handles GET /api/v1/product-trend
func (h *Handler) GetProductTrend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	points := h.svc.Engine().ProductTrend(querySpec(r))
	metrics.ObserveAggregation("product_trend", start)
	writeJSON(w, points)
}

// GetSankey handles GET /api/v1/sankey
func (h *Handler) GetSankey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sankey := h.svc.Engine().Sankey(querySpec(r))
	metrics.ObserveAggregation("sankey", start)
	if sankey.Nodes == nil {
		sankey.Nodes = []string{}
	}
	if sankey.Links == nil {
		sankey.Links = []model.SankeyLink{}
	}
	writeJSON(w, sankey)
}

// querySpec reads repeatable year, country and product parameters and a
// level parameter from the URL.
func querySpec(r *http.Request) model.FilterSpec {
	q := r.URL.Query()
	var level any
	if v, ok := q["level"]; ok {
		level = v
	}
	return filter.Normalize(q["year"], q["country"], level, q["product"])
}

func decodeSelection(r *http.Request) (Selection, error) {
	var sel Selection
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&sel); err != nil {
		return Selection{}, err
	}
	return sel, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
