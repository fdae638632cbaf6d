package dataset

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradelens/analytics-engine/internal/model"
	"github.com/tradelens/analytics-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func row(key, year, value, traffic, country string) []string {
	return []string{key, year, value, traffic, country, "Animals", "Horses", "Pure-bred", "Breeding"}
}

func TestNormalizeProductKey(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"12.34-56", "00123456"},
		{"0101.21.00", "01012100"},
		{"1012100", "01012100"},
		{"", "00000000"},
		{"abc", "00000000"},
		{"1234567890", "12345678"},
		{" 8471.30 ", "00847130"},
	}
	for _, tt := range tests {
		if got := NormalizeProductKey(tt.raw); got != tt.want {
			t.Errorf("NormalizeProductKey(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCodesAndLabels(t *testing.T) {
	key := NormalizeProductKey("12.34-56")
	if got := CodeAtLevel(key, model.Level2); got != "00" {
		t.Errorf("level-2 code = %q, want 00", got)
	}
	if got := CodeAtLevel(key, model.Level6); got != "001234" {
		t.Errorf("level-6 code = %q, want 001234", got)
	}

	tests := []struct {
		code  string
		level model.Level
		want  string
	}{
		{"01", model.Level2, "01 – Live animals"},
		{"0101", model.Level4, "0101 – Live animals"},
		{"010121", model.Level6, "0101.21 – Live animals"},
		{"01012100", model.Level8, "0101.2100 – Live animals"},
	}
	for _, tt := range tests {
		if got := FormatLabel(tt.code, tt.level, "Live animals"); got != tt.want {
			t.Errorf("FormatLabel(%q, %d) = %q, want %q", tt.code, tt.level, got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"2020", 2020, true},
		{" 2021 ", 2021, true},
		{"2020.0", 2020, true},
		{"2020.5", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseYear(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseYear(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw    string
		want   decimal.Decimal
		status valueStatus
	}{
		{"100.25", d(100.25), valueOK},
		{"", decimal.Zero, valueMissing},
		{"abc", decimal.Zero, valueInvalid},
		{"-5", decimal.Zero, valueNegative},
	}
	for _, tt := range tests {
		got, status := parseValue(tt.raw)
		if !got.Equal(tt.want) || status != tt.status {
			t.Errorf("parseValue(%q) = (%s, %d), want (%s, %d)", tt.raw, got, status, tt.want, tt.status)
		}
	}
}

func TestLoad(t *testing.T) {
	src := store.NewMemorySource(RequiredColumns, [][]string{
		row("0101.2100", "2020", "100", "EXP", "Peru"),
		row("0101.2100", "2020", "40", "IMP", "Peru"),
		row("0201.3000", "2022", "200", "EXP", "Chile"),
		row("0201.3000", "bad", "oops", "TRN", ""),
	})

	ds, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("expected 4 records, got %d", ds.Len())
	}

	min, max, ok := ds.YearRange()
	if !ok || min != 2020 || max != 2022 {
		t.Errorf("year range = (%d, %d, %v), want (2020, 2022, true)", min, max, ok)
	}
	if !reflect.DeepEqual(ds.Years(), []int{2020, 2022}) {
		t.Errorf("years = %v", ds.Years())
	}
	if !reflect.DeepEqual(ds.Countries(), []string{"Chile", "Peru", Unknown}) {
		t.Errorf("countries = %v", ds.Countries())
	}

	first := ds.Records()[0]
	if first.ProductKey != "01012100" {
		t.Errorf("product key = %q", first.ProductKey)
	}
	if first.Flow != model.FlowExport || !first.Value.Equal(d(100)) {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.Code(model.Level6) != "010121" || first.Label(model.Level6) != "0101.21 – Pure-bred" {
		t.Errorf("unexpected level-6 code/label %q %q", first.Code(model.Level6), first.Label(model.Level6))
	}

	last := ds.Records()[3]
	if last.YearValid {
		t.Error("unparsable year should be marked invalid")
	}
	if !last.Value.IsZero() {
		t.Errorf("unparsable value should coerce to 0, got %s", last.Value)
	}
	if last.Flow != model.FlowOther {
		t.Errorf("unknown traffic should map to Other, got %s", last.Flow)
	}
	if last.Country != Unknown {
		t.Errorf("empty country should become %q, got %q", Unknown, last.Country)
	}

	q := ds.Quality()
	want := Quality{Rows: 4, InvalidYears: 1, InvalidValues: 1, OtherFlows: 1}
	if q != want {
		t.Errorf("quality = %+v, want %+v", q, want)
	}
}

func TestLoad_MissingColumnsIsFatal(t *testing.T) {
	src := store.NewMemorySource([]string{ColProductKey, ColYear, ColValue}, [][]string{{"01", "2020", "1"}})

	ds, err := Load(context.Background(), src)
	if ds != nil {
		t.Error("no partial dataset should be returned")
	}
	if !errors.Is(err, store.ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	var mce *store.MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected *store.MissingColumnsError, got %T", err)
	}
	want := []string{ColTraffic, ColCountry, "HS2_Description", "HS4_Description", "HS6_Description", "HS8_Description"}
	if !reflect.DeepEqual(mce.Missing, want) {
		t.Errorf("missing = %v, want %v", mce.Missing, want)
	}
}

func TestNew_NoValidYears(t *testing.T) {
	ds := New([]model.TradeRecord{{Country: "Peru"}})
	if _, _, ok := ds.YearRange(); ok {
		t.Error("dataset without valid years should report ok=false")
	}
}

func TestNew_FirstDescriptionWins(t *testing.T) {
	first := NewRecord("01012100", 2020, "1", "EXP", "Peru", [4]string{"Animals", "Horses", "Pure-bred", "Breeding"})
	later := NewRecord("01012900", 2021, "2", "IMP", "Chile", [4]string{"Live animals", "Horses, asses", "Other horses", "Other"})

	ds := New([]model.TradeRecord{first, later})
	r := ds.Records()[1]

	if r.Description(model.Level2) != "Animals" || r.Label(model.Level2) != "01 – Animals" {
		t.Errorf("level 2 should keep the first description, got %q / %q",
			r.Description(model.Level2), r.Label(model.Level2))
	}
	if r.Description(model.Level4) != "Horses" {
		t.Errorf("level 4 should keep the first description, got %q", r.Description(model.Level4))
	}
	// Level 6 and 8 codes differ, so their descriptions stay as loaded.
	if r.Description(model.Level6) != "Other horses" || r.Label(model.Level8) != "0101.2900 – Other" {
		t.Errorf("distinct codes should keep their own descriptions: %q / %q",
			r.Description(model.Level6), r.Label(model.Level8))
	}
}
