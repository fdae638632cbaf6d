// Package model defines the core domain types shared across the analytics engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Flow is the trade direction of a record. Balance only appears in time series.
type Flow string

const (
	FlowExport  Flow = "Export"
	FlowImport  Flow = "Import"
	FlowOther   Flow = "Other"
	FlowBalance Flow = "Balance"
)

// FlowFromTraffic maps a raw traffic-direction code to a Flow.
func FlowFromTraffic(code string) Flow {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "EXP":
		return FlowExport
	case "IMP":
		return FlowImport
	default:
		return FlowOther
	}
}

// Level is a product-classification granularity: the number of leading
// digits of the 8-digit product key.
type Level int

const (
	Level2 Level = 2
	Level4 Level = 4
	Level6 Level = 6
	Level8 Level = 8

	DefaultLevel = Level6
)

// Levels lists every classification level, coarsest first.
var Levels = []Level{Level2, Level4, Level6, Level8}

// Valid reports whether l is one of the four classification levels.
func (l Level) Valid() bool {
	return l == Level2 || l == Level4 || l == Level6 || l == Level8
}

// Index returns the slot of l in per-level arrays. l must be valid.
func (l Level) Index() int { return int(l)/2 - 1 }

// Column is the dataset description column for the level, e.g. "HS6_Description".
func (l Level) Column() string { return "HS" + strconv.Itoa(int(l)) + "_Description" }

func (l Level) String() string { return "HS" + strconv.Itoa(int(l)) }

// ParseLevel accepts "6", "HS6" and "HS6_Description" spellings.
func ParseLevel(s string) (Level, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "_DESCRIPTION")
	s = strings.TrimPrefix(s, "HS")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	l := Level(n)
	return l, l.Valid()
}

// TradeRecord is one row of the dataset. Immutable once loaded.
type TradeRecord struct {
	ProductKey   string          `json:"product_key"` // exactly 8 digits
	Year         int             `json:"year"`
	YearValid    bool            `json:"year_valid"`
	Value        decimal.Decimal `json:"value"`
	Flow         Flow            `json:"flow"`
	Country      string          `json:"country"`
	Codes        [4]string       `json:"codes"`        // indexed by Level.Index()
	Descriptions [4]string       `json:"descriptions"` // indexed by Level.Index()
	Labels       [4]string       `json:"labels"`       // indexed by Level.Index()
}

// Code returns the product code at the given level.
func (r *TradeRecord) Code(l Level) string { return r.Codes[l.Index()] }

// Description returns the product description at the given level.
func (r *TradeRecord) Description(l Level) string { return r.Descriptions[l.Index()] }

// Label returns the display label at the given level.
func (r *TradeRecord) Label(l Level) string { return r.Labels[l.Index()] }

// CodeEntry is one selectable product code at a classification level.
type CodeEntry struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// KPIs are the headline sums over the filtered records.
type KPIs struct {
	Exports decimal.Decimal `json:"exports"`
	Imports decimal.Decimal `json:"imports"`
	Balance decimal.Decimal `json:"balance"` // exports - imports
	Volume  decimal.Decimal `json:"volume"`  // exports + imports
}

// SeriesPoint is one (year, flow) cell of the time series.
type SeriesPoint struct {
	Year  int             `json:"year"`
	Flow  Flow            `json:"flow"`
	Value decimal.Decimal `json:"value"`
}

// CountryTotal is one row of the country ranking.
type CountryTotal struct {
	Country string          `json:"country"`
	Exports decimal.Decimal `json:"exports"`
	Imports decimal.Decimal `json:"imports"`
	Total   decimal.Decimal `json:"total"`
}

// ProductTotal is one row of the product ranking.
type ProductTotal struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Label       string          `json:"label"`
	Exports     decimal.Decimal `json:"exports"`
	Imports     decimal.Decimal `json:"imports"`
	Total       decimal.Decimal `json:"total"`
}

// AggregateResult is everything the dashboard needs for one filter selection.
type AggregateResult struct {
	Level          Level          `json:"level"`
	YearsLabel     string         `json:"years_label"`
	KPIs           KPIs           `json:"kpis"`
	TimeSeries     []SeriesPoint  `json:"time_series"`
	CountryRanking []CountryTotal `json:"country_ranking"`
	ProductRanking []ProductTotal `json:"product_ranking"`
}

// TreemapNode is a leaf of the flow → country → product treemap.
type TreemapNode struct {
	Flow    Flow            `json:"flow"`
	Country string          `json:"country"`
	Product string          `json:"product"`
	Value   decimal.Decimal `json:"value"`
	Other   bool            `json:"other"` // remainder of all non-leading products
}

// ProductValue is a product description with its summed value.
type ProductValue struct {
	Description string          `json:"description"`
	Value       decimal.Decimal `json:"value"`
}

// CountryProducts lists the leading products of one country per flow.
type CountryProducts struct {
	Country string         `json:"country"`
	Exports []ProductValue `json:"exports"`
	Imports []ProductValue `json:"imports"`
}

// ProductTrendPoint is the value of one product code in one year and flow.
type ProductTrendPoint struct {
	Year  int             `json:"year"`
	Code  string          `json:"code"`
	Label string          `json:"label"`
	Flow  Flow            `json:"flow"`
	Value decimal.Decimal `json:"value"`
}

// SankeyLink connects two node indices with a value.
type SankeyLink struct {
	Source int             `json:"source"`
	Target int             `json:"target"`
	Value  decimal.Decimal `json:"value"`
	Label  string          `json:"label"`
}

// Sankey is a flow → country → product diagram.
type Sankey struct {
	Nodes []string     `json:"nodes"`
	Links []SankeyLink `json:"links"`
}
