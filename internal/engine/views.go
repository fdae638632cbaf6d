package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tradelens/analytics-engine/internal/format"
	"github.com/tradelens/analytics-engine/internal/model"
)

// trendLabelLength bounds product labels in ProductTrend.
const trendLabelLength = 50

var tradeFlows = []model.Flow{model.FlowExport, model.FlowImport}

func isTradeFlow(f model.Flow) bool {
	return f == model.FlowExport || f == model.FlowImport
}

type flowCountry struct {
	flow    model.Flow
	country string
}

// Treemap returns, for each flow and each of the leading countries, the
// country's largest level-6 product plus an Other node with the remainder.
func (e *Engine) Treemap(spec model.FilterSpec) []model.TreemapNode {
	m := e.matcher(spec)

	countryTotals := make(map[string]*flowSums)
	byProduct := make(map[flowCountry]map[string]decimal.Decimal)

	records := e.ds.Records()
	for i := range records {
		r := &records[i]
		if !isTradeFlow(r.Flow) || !m.match(r) {
			continue
		}
		c, ok := countryTotals[r.Country]
		if !ok {
			c = &flowSums{}
			countryTotals[r.Country] = c
		}
		c.add(r)

		key := flowCountry{flow: r.Flow, country: r.Country}
		products, ok := byProduct[key]
		if !ok {
			products = make(map[string]decimal.Decimal)
			byProduct[key] = products
		}
		desc := r.Description(model.Level6)
		products[desc] = products[desc].Add(r.Value)
	}

	top := rankCountries(countryTotals, TreemapCountries)
	var nodes []model.TreemapNode
	for _, flow := range tradeFlows {
		for _, c := range top {
			products, ok := byProduct[flowCountry{flow: flow, country: c.Country}]
			if !ok {
				continue
			}
			ranked := rankValues(products)
			best := ranked[0]
			nodes = append(nodes, model.TreemapNode{
				Flow:    flow,
				Country: c.Country,
				Product: best.Description,
				Value:   best.Value,
			})

			rest := decimal.Zero
			for _, pv := range ranked[1:] {
				rest = rest.Add(pv.Value)
			}
			if rest.IsPositive() {
				nodes = append(nodes, model.TreemapNode{
					Flow:    flow,
					Country: c.Country,
					Product: OtherProducts,
					Value:   rest,
					Other:   true,
				})
			}
		}
	}
	return nodes
}

// CountryProducts returns the topN level-6 products per flow for every
// selected country, or for every country with trade when none is selected.
// Only the year filter applies; an empty year selection follows the engine's
// year policy.
func (e *Engine) CountryProducts(spec model.FilterSpec, topN int) []model.CountryProducts {
	if topN <= 0 {
		topN = DefaultTopN
	}
	m := e.matcher(spec)

	sums := make(map[flowCountry]map[string]decimal.Decimal)
	seen := make(map[string]struct{})

	records := e.ds.Records()
	for i := range records {
		r := &records[i]
		if !isTradeFlow(r.Flow) || !r.Value.IsPositive() || !m.matchYear(r) {
			continue
		}
		seen[r.Country] = struct{}{}

		key := flowCountry{flow: r.Flow, country: r.Country}
		products, ok := sums[key]
		if !ok {
			products = make(map[string]decimal.Decimal)
			sums[key] = products
		}
		desc := r.Description(model.Level6)
		products[desc] = products[desc].Add(r.Value)
	}

	countries := spec.Countries
	if len(countries) == 0 {
		countries = make([]string, 0, len(seen))
		for c := range seen {
			countries = append(countries, c)
		}
		sort.Strings(countries)
	}

	out := make([]model.CountryProducts, 0, len(countries))
	for _, country := range countries {
		out = append(out, model.CountryProducts{
			Country: country,
			Exports: topValues(rankValues(sums[flowCountry{model.FlowExport, country}]), topN),
			Imports: topValues(rankValues(sums[flowCountry{model.FlowImport, country}]), topN),
		})
	}
	return out
}

// ProductTrend returns yearly export and import values per product code at
// the selected level over the full year range. Only the country filter
// applies; the year and product selections are ignored.
func (e *Engine) ProductTrend(spec model.FilterSpec) []model.ProductTrendPoint {
	m := e.matcher(spec)

	type trendKey struct {
		year int
		code string
		flow model.Flow
	}
	sums := make(map[trendKey]decimal.Decimal)
	labels := make(map[string]string)

	records := e.ds.Records()
	for i := range records {
		r := &records[i]
		if !r.YearValid || !isTradeFlow(r.Flow) || !m.matchCountry(r) {
			continue
		}
		code := r.Code(m.level)
		k := trendKey{year: r.Year, code: code, flow: r.Flow}
		sums[k] = sums[k].Add(r.Value)
		if _, ok := labels[code]; !ok {
			labels[code] = format.Shorten(r.Label(m.level), trendLabelLength)
		}
	}

	points := make([]model.ProductTrendPoint, 0, len(sums))
	for k, v := range sums {
		points = append(points, model.ProductTrendPoint{
			Year:  k.year,
			Code:  k.code,
			Label: labels[k.code],
			Flow:  k.flow,
			Value: v,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Flow < b.Flow
	})
	return points
}

// Sankey links flows to countries and countries to product codes at the
// selected level, over the fully filtered records.
func (e *Engine) Sankey(spec model.FilterSpec) model.Sankey {
	m := e.matcher(spec)

	type countryCode struct {
		country string
		code    string
	}
	flowLinks := make(map[flowCountry]decimal.Decimal)
	productLinks := make(map[countryCode]decimal.Decimal)
	labels := make(map[string]string)
	flowSeen := make(map[model.Flow]bool)

	records := e.ds.Records()
	for i := range records {
		r := &records[i]
		if !isTradeFlow(r.Flow) || !m.match(r) {
			continue
		}
		code := r.Code(m.level)
		flowSeen[r.Flow] = true
		flowLinks[flowCountry{r.Flow, r.Country}] = flowLinks[flowCountry{r.Flow, r.Country}].Add(r.Value)
		productLinks[countryCode{r.Country, code}] = productLinks[countryCode{r.Country, code}].Add(r.Value)
		if _, ok := labels[code]; !ok {
			labels[code] = r.Label(m.level)
		}
	}

	var out model.Sankey
	if len(flowLinks) == 0 {
		return out
	}

	index := make(map[string]int)
	addNode := func(name string) {
		if _, ok := index[name]; !ok {
			index[name] = len(out.Nodes)
			out.Nodes = append(out.Nodes, name)
		}
	}
	for _, f := range tradeFlows {
		if flowSeen[f] {
			addNode(string(f))
		}
	}
	countrySeen := make(map[string]struct{})
	countries := make([]string, 0)
	for k := range flowLinks {
		if _, ok := countrySeen[k.country]; ok {
			continue
		}
		countrySeen[k.country] = struct{}{}
		countries = append(countries, k.country)
	}
	sort.Strings(countries)
	for _, c := range countries {
		addNode(c)
	}
	codes := make([]string, 0, len(labels))
	for code := range labels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		addNode(code)
	}

	for _, f := range tradeFlows {
		for _, c := range countries {
			v, ok := flowLinks[flowCountry{f, c}]
			if !ok {
				continue
			}
			out.Links = append(out.Links, model.SankeyLink{
				Source: index[string(f)],
				Target: index[c],
				Value:  v,
				Label:  string(f) + " → " + c,
			})
		}
	}
	for _, c := range countries {
		for _, code := range codes {
			v, ok := productLinks[countryCode{c, code}]
			if !ok {
				continue
			}
			out.Links = append(out.Links, model.SankeyLink{
				Source: index[c],
				Target: index[code],
				Value:  v,
				Label:  c + " → " + labels[code],
			})
		}
	}
	return out
}

// rankValues orders product sums by value descending, then description.
func rankValues(sums map[string]decimal.Decimal) []model.ProductValue {
	out := make([]model.ProductValue, 0, len(sums))
	for desc, v := range sums {
		out = append(out, model.ProductValue{Description: desc, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Description < out[j].Description
	})
	return out
}

func topValues(ranked []model.ProductValue, n int) []model.ProductValue {
	if len(ranked) > n {
		return ranked[:n]
	}
	return ranked
}
