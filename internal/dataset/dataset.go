// Package dataset loads the trade table once at startup and normalizes it
// into immutable records: canonical 8-digit product keys, per-level codes,
// descriptions and labels, flow directions and exact decimal amounts.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tradelens/analytics-engine/internal/model"
	"github.com/tradelens/analytics-engine/internal/store"
)

// Required dataset columns.
const (
	ColProductKey = "tn_key"
	ColYear       = "year"
	ColValue      = "chf_num"
	ColTraffic    = "traffic"
	ColCountry    = "country_en"
)

// RequiredColumns lists every column Load reads, in record order.
var RequiredColumns = []string{
	ColProductKey, ColYear, ColValue, ColTraffic, ColCountry,
	model.Level2.Column(), model.Level4.Column(), model.Level6.Column(), model.Level8.Column(),
}

// Quality counts rows whose fields had to be coerced during load.
type Quality struct {
	Rows           int `json:"rows"`
	InvalidYears   int `json:"invalid_years"`
	MissingValues  int `json:"missing_values"`
	InvalidValues  int `json:"invalid_values"`
	NegativeValues int `json:"negative_values"`
	OtherFlows     int `json:"other_flows"`
	SkippedRows    int `json:"skipped_rows"` // malformed lines the source dropped
}

// Dataset is the immutable, in-memory trade table. Safe for concurrent reads.
type Dataset struct {
	records   []model.TradeRecord
	minYear   int
	maxYear   int
	hasYears  bool
	years     []int
	countries []string
	quality   Quality
}

// Load reads every row of src in a single pass. A missing column or a read
// error fails the whole load; no partial dataset is returned.
func Load(ctx context.Context, src store.Source) (*Dataset, error) {
	rows, err := src.Open(ctx, RequiredColumns)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	defer rows.Close()

	var records []model.TradeRecord
	var q Quality
	for rows.Next() {
		rec, issues := normalizeRow(rows.Record())
		q.add(issues)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load dataset from %s: %w", src.Name(), err)
	}

	if s, ok := rows.(interface{ Skipped() int }); ok {
		q.SkippedRows = s.Skipped()
	}

	ds := New(records)
	ds.quality = q

	slog.Info("dataset loaded",
		"source", src.Name(),
		"rows", q.Rows,
		"countries", len(ds.countries),
		"min_year", ds.minYear,
		"max_year", ds.maxYear,
	)
	if q.InvalidYears+q.InvalidValues+q.NegativeValues+q.SkippedRows > 0 {
		slog.Warn("dataset quality issues",
			"invalid_years", q.InvalidYears,
			"missing_values", q.MissingValues,
			"invalid_values", q.InvalidValues,
			"negative_values", q.NegativeValues,
			"other_flows", q.OtherFlows,
			"skipped_rows", q.SkippedRows,
		)
	}
	return ds, nil
}

// New builds a dataset from already normalized records and takes ownership
// of the slice. Used by Load and by tests that construct synthetic datasets.
func New(records []model.TradeRecord) *Dataset {
	ds := &Dataset{records: records}

	yearSeen := make(map[int]struct{})
	countrySeen := make(map[string]struct{})
	var firstDesc [4]map[string]string
	for _, l := range model.Levels {
		firstDesc[l.Index()] = make(map[string]string)
	}

	for i := range records {
		r := &records[i]
		// A code keeps the first description seen for it at every level.
		for _, l := range model.Levels {
			li := l.Index()
			desc, ok := firstDesc[li][r.Codes[li]]
			if !ok {
				firstDesc[li][r.Codes[li]] = r.Descriptions[li]
				continue
			}
			if desc != r.Descriptions[li] {
				r.Descriptions[li] = desc
				r.Labels[li] = FormatLabel(r.Codes[li], l, desc)
			}
		}

		if _, ok := countrySeen[r.Country]; !ok {
			countrySeen[r.Country] = struct{}{}
			ds.countries = append(ds.countries, r.Country)
		}
		if !r.YearValid {
			continue
		}
		if _, ok := yearSeen[r.Year]; !ok {
			yearSeen[r.Year] = struct{}{}
			ds.years = append(ds.years, r.Year)
		}
		if !ds.hasYears || r.Year < ds.minYear {
			ds.minYear = r.Year
		}
		if !ds.hasYears || r.Year > ds.maxYear {
			ds.maxYear = r.Year
		}
		ds.hasYears = true
	}
	sort.Ints(ds.years)
	sort.Strings(ds.countries)
	ds.quality.Rows = len(records)
	return ds
}

// NewRecord builds a normalized record. Used when records come from code
// rather than from a Source.
func NewRecord(rawKey string, year int, value string, traffic, country string, descriptions [4]string) model.TradeRecord {
	row := []string{rawKey, fmt.Sprint(year), value, traffic, country,
		descriptions[0], descriptions[1], descriptions[2], descriptions[3]}
	rec, _ := normalizeRow(row)
	return rec
}

// Records returns the records. Callers must not modify them.
func (d *Dataset) Records() []model.TradeRecord { return d.records }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// YearRange returns the smallest and largest valid year. ok is false when no
// record carries a valid year.
func (d *Dataset) YearRange() (min, max int, ok bool) {
	return d.minYear, d.maxYear, d.hasYears
}

// Years returns the distinct valid years, ascending.
func (d *Dataset) Years() []int { return d.years }

// Countries returns the distinct countries, sorted.
func (d *Dataset) Countries() []string { return d.countries }

// Quality returns the coercion counters collected during Load.
func (d *Dataset) Quality() Quality { return d.quality }

type rowIssues struct {
	invalidYear bool
	value       valueStatus
	otherFlow   bool
}

func (q *Quality) add(i rowIssues) {
	q.Rows++
	if i.invalidYear {
		q.InvalidYears++
	}
	switch i.value {
	case valueMissing:
		q.MissingValues++
	case valueInvalid:
		q.InvalidValues++
	case valueNegative:
		q.NegativeValues++
	}
	if i.otherFlow {
		q.OtherFlows++
	}
}

// normalizeRow converts one raw row in RequiredColumns order.
func normalizeRow(row []string) (model.TradeRecord, rowIssues) {
	var issues rowIssues

	key := NormalizeProductKey(row[0])
	year, ok := parseYear(row[1])
	issues.invalidYear = !ok
	value, status := parseValue(row[2])
	issues.value = status
	flow := model.FlowFromTraffic(row[3])
	issues.otherFlow = flow == model.FlowOther

	rec := model.TradeRecord{
		ProductKey: key,
		Year:       year,
		YearValid:  ok,
		Value:      value,
		Flow:       flow,
		Country:    textOrUnknown(row[4]),
	}
	for _, l := range model.Levels {
		i := l.Index()
		code := CodeAtLevel(key, l)
		desc := textOrUnknown(row[5+i])
		rec.Codes[i] = code
		rec.Descriptions[i] = desc
		rec.Labels[i] = FormatLabel(code, l, desc)
	}
	return rec, issues
}
