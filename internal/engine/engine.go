// Package engine implements the filtering and aggregation behind the trade
// dashboard: KPIs, a zero-filled yearly series, and country and product
// rankings, plus the treemap, per-country, per-product and Sankey views.
//
// The engine is stateless apart from the immutable dataset it is built on,
// so Aggregate is safe to call concurrently and to memoize on the FilterSpec.
// All monetary values use shopspring/decimal, never float64.
package engine

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradelens/analytics-engine/internal/dataset"
	"github.com/tradelens/analytics-engine/internal/format"
	"github.com/tradelens/analytics-engine/internal/model"
)

const (
	// TopCountries caps the country ranking.
	TopCountries = 15

	// TopProducts caps the product ranking.
	TopProducts = 20

	// TreemapCountries caps the countries shown in the treemap.
	TreemapCountries = 15

	// DefaultTopN is the per-flow product count of CountryProducts.
	DefaultTopN = 5

	// OtherProducts labels the treemap remainder node.
	OtherProducts = "Other"
)

// MinProductTotal is the combined value a product needs to be ranked.
var MinProductTotal = decimal.NewFromInt(10000)

// Engine aggregates one dataset.
type Engine struct {
	ds                 *dataset.Dataset
	emptyYearsNoRecord bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmptyYearsSelectNothing makes an empty year selection match no record
// in KPIs, rankings, Treemap, Sankey and CountryProducts, instead of all
// years. The time series and ProductTrend never apply the year filter and
// are unaffected.
func WithEmptyYearsSelectNothing() Option {
	return func(e *Engine) { e.emptyYearsNoRecord = true }
}

// New creates an engine over ds.
func New(ds *dataset.Dataset, opts ...Option) *Engine {
	e := &Engine{ds: ds}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dataset returns the dataset the engine reads.
func (e *Engine) Dataset() *dataset.Dataset { return e.ds }

// InitialSpec is the selection the dashboard opens with: the latest year
// at the default level.
func (e *Engine) InitialSpec() model.FilterSpec {
	var years []int
	if _, max, ok := e.ds.YearRange(); ok {
		years = []int{max}
	}
	return model.NewFilterSpec(years, nil, model.DefaultLevel, nil)
}

// matcher evaluates the conjunctive row predicate of one FilterSpec.
type matcher struct {
	level     model.Level
	years     map[int]struct{}
	countries map[string]struct{}
	products  map[string]struct{}
	noYears   bool
}

func (e *Engine) matcher(spec model.FilterSpec) matcher {
	if !spec.Level.Valid() {
		slog.Error("filter spec with invalid level reached the engine", "level", int(spec.Level))
		spec.Level = model.DefaultLevel
	}
	return matcher{
		level:     spec.Level,
		years:     spec.YearSet(),
		countries: spec.CountrySet(),
		products:  spec.ProductSet(),
		noYears:   e.emptyYearsNoRecord && len(spec.Years) == 0,
	}
}

func (m *matcher) matchCountry(r *model.TradeRecord) bool {
	if m.countries == nil {
		return true
	}
	_, ok := m.countries[r.Country]
	return ok
}

// matchOthers checks every predicate except the year.
func (m *matcher) matchOthers(r *model.TradeRecord) bool {
	if !m.matchCountry(r) {
		return false
	}
	if m.products != nil {
		if _, ok := m.products[r.Code(m.level)]; !ok {
			return false
		}
	}
	return true
}

func (m *matcher) matchYear(r *model.TradeRecord) bool {
	if m.noYears {
		return false
	}
	if m.years == nil {
		return true
	}
	if !r.YearValid {
		return false
	}
	_, ok := m.years[r.Year]
	return ok
}

func (m *matcher) match(r *model.TradeRecord) bool {
	return m.matchOthers(r) && m.matchYear(r)
}

// flowSums accumulates export and import totals of one group.
type flowSums struct {
	exports decimal.Decimal
	imports decimal.Decimal
}

// add ignores flows other than Export and Import.
func (s *flowSums) add(r *model.TradeRecord) {
	switch r.Flow {
	case model.FlowExport:
		s.exports = s.exports.Add(r.Value)
	case model.FlowImport:
		s.imports = s.imports.Add(r.Value)
	}
}

func (s *flowSums) total() decimal.Decimal { return s.exports.Add(s.imports) }

// Aggregate computes the dashboard for spec. It never fails: a selection
// matching nothing yields zero KPIs, a zero-filled series and empty rankings.
func (e *Engine) Aggregate(spec model.FilterSpec) model.AggregateResult {
	m := e.matcher(spec)

	minYear, maxYear, hasYears := e.ds.YearRange()
	var series []flowSums
	if hasYears {
		series = make([]flowSums, maxYear-minYear+1)
	}

	var kpi flowSums
	countries := make(map[string]*flowSums)
	products := make(map[string]*productSums)

	records := e.ds.Records()
	for i := range records {
		r := &records[i]
		if !m.matchOthers(r) {
			continue
		}
		if r.YearValid {
			series[r.Year-minYear].add(r)
		}
		if !m.matchYear(r) {
			continue
		}
		kpi.add(r)

		if r.Flow != model.FlowExport && r.Flow != model.FlowImport {
			continue
		}
		c, ok := countries[r.Country]
		if !ok {
			c = &flowSums{}
			countries[r.Country] = c
		}
		c.add(r)

		code := r.Code(m.level)
		p, ok := products[code]
		if !ok {
			p = &productSums{description: r.Description(m.level), label: r.Label(m.level)}
			products[code] = p
		}
		p.add(r)
	}

	return model.AggregateResult{
		Level:      m.level,
		YearsLabel: format.YearPeriod(spec.Years),
		KPIs: model.KPIs{
			Exports: kpi.exports,
			Imports: kpi.imports,
			Balance: kpi.exports.Sub(kpi.imports),
			Volume:  kpi.total(),
		},
		TimeSeries:     buildSeries(series, minYear),
		CountryRanking: rankCountries(countries, TopCountries),
		ProductRanking: rankProducts(products, MinProductTotal, TopProducts),
	}
}

// buildSeries emits Export, Import and Balance for every year in range.
func buildSeries(sums []flowSums, minYear int) []model.SeriesPoint {
	points := make([]model.SeriesPoint, 0, 3*len(sums))
	for i, s := range sums {
		year := minYear + i
		points = append(points,
			model.SeriesPoint{Year: year, Flow: model.FlowExport, Value: s.exports},
			model.SeriesPoint{Year: year, Flow: model.FlowImport, Value: s.imports},
			model.SeriesPoint{Year: year, Flow: model.FlowBalance, Value: s.exports.Sub(s.imports)},
		)
	}
	return points
}

// rankCountries keeps the top n by combined total, ties broken by name.
func rankCountries(groups map[string]*flowSums, n int) []model.CountryTotal {
	ranking := make([]model.CountryTotal, 0, len(groups))
	for country, s := range groups {
		ranking = append(ranking, model.CountryTotal{
			Country: country,
			Exports: s.exports,
			Imports: s.imports,
			Total:   s.total(),
		})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if c := ranking[i].Total.Cmp(ranking[j].Total); c != 0 {
			return c > 0
		}
		return ranking[i].Country < ranking[j].Country
	})
	if len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}

type productSums struct {
	flowSums
	description string
	label       string
}

// rankProducts drops products below min, then keeps the top n by combined
// total, ties broken by code.
func rankProducts(groups map[string]*productSums, min decimal.Decimal, n int) []model.ProductTotal {
	ranking := make([]model.ProductTotal, 0, len(groups))
	for code, s := range groups {
		total := s.total()
		if total.LessThan(min) {
			continue
		}
		ranking = append(ranking, model.ProductTotal{
			Code:        code,
			Description: s.description,
			Label:       s.label,
			Exports:     s.exports,
			Imports:     s.imports,
			Total:       total,
		})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if c := ranking[i].Total.Cmp(ranking[j].Total); c != 0 {
			return c > 0
		}
		return ranking[i].Code < ranking[j].Code
	})
	if len(ranking) > n {
		ranking = ranking[:n]
	}
	return ranking
}
