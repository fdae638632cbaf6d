package filter

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"

	"github.com/tradelens/analytics-engine/internal/model"
)

func TestNormalize_OrderAndDuplicateIndependence(t *testing.T) {
	years := []any{"2021", 2020, 2020.0, json.Number("2019"), "2021"}
	countries := []any{"Peru", "Chile", "Peru", nil, ""}
	products := []any{"010121", "020130", "010121"}

	base := Normalize(years, countries, "6", products)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		y := shuffleDup(rng, years)
		c := shuffleDup(rng, countries)
		p := shuffleDup(rng, products)

		got := Normalize(y, c, 6, p)
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("permutation %d: got %+v, want %+v", i, got, base)
		}
		if got.Key() != base.Key() {
			t.Fatalf("permutation %d: key %q != %q", i, got.Key(), base.Key())
		}
	}

	want := model.FilterSpec{
		Years:     []int{2019, 2020, 2021},
		Countries: []string{"Chile", "Peru"},
		Level:     model.Level6,
		Products:  []string{"010121", "020130"},
	}
	if !reflect.DeepEqual(base, want) {
		t.Errorf("got %+v, want %+v", base, want)
	}
}

// shuffleDup returns a shuffled copy of in with a random element repeated.
func shuffleDup(rng *rand.Rand, in []any) []any {
	out := append([]any(nil), in...)
	out = append(out, in[rng.Intn(len(in))])
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestYears_DiscardsUnparsable(t *testing.T) {
	got := Years([]any{"2020", "twenty", nil, 2021.5, " 2022 ", true, "2023.0"})
	want := []int{2020, 2022, 2023}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestYears_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []int
	}{
		{"nil", nil, nil},
		{"scalar string", "2020", []int{2020}},
		{"scalar int", 2020, []int{2020}},
		{"string slice", []string{"2020", "x"}, []int{2020}},
		{"int slice", []int{2021, 2020}, []int{2021, 2020}},
		{"float slice", []float64{2020, 2020.2}, []int{2020}},
		{"empty", []any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Years(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	got := Strings([]any{"Peru", nil, "", 42, json.Number("7"), 1.5, true})
	want := []string{"Peru", "42", "7", "1.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := Strings("Chile"); !reflect.DeepEqual(got, []string{"Chile"}) {
		t.Errorf("scalar: got %v", got)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		raw  any
		want model.Level
	}{
		{nil, model.Level6},
		{"HS2_Description", model.Level2},
		{"HS4", model.Level4},
		{"8", model.Level8},
		{2, model.Level2},
		{8.0, model.Level8},
		{json.Number("4"), model.Level4},
		{model.Level2, model.Level2},
		{[]string{"4"}, model.Level4},
		{"HS5", model.Level6},
		{7, model.Level6},
		{"", model.Level6},
		{[]any{1, 2}, model.Level6},
		{[]any{"HS4"}, model.Level4},
		{[]any{json.Number("8")}, model.Level8},
		{[]any{}, model.Level6},
		{model.Level(3), model.Level6},
	}
	for _, tt := range tests {
		if got := Level(tt.raw); got != tt.want {
			t.Errorf("Level(%#v) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize_EmptyInputs(t *testing.T) {
	spec := Normalize(nil, []any{nil, ""}, "bogus", []string{})
	if len(spec.Years) != 0 || len(spec.Countries) != 0 || len(spec.Products) != 0 {
		t.Errorf("expected empty filters, got %+v", spec)
	}
	if spec.Level != model.DefaultLevel {
		t.Errorf("expected default level, got %d", spec.Level)
	}
	if spec.Key() != Normalize(nil, nil, nil, nil).Key() {
		t.Error("empty selections should share a cache key")
	}
}

func TestKey_DistinguishesDimensions(t *testing.T) {
	a := Normalize(nil, []string{"2020"}, nil, nil)
	b := Normalize(nil, nil, nil, []string{"2020"})
	c := Normalize([]int{2020}, nil, nil, nil)
	if a.Key() == b.Key() || a.Key() == c.Key() || b.Key() == c.Key() {
		t.Errorf("keys collide: %q %q %q", a.Key(), b.Key(), c.Key())
	}

	joined := Normalize(nil, []string{"a,b"}, nil, nil)
	split := Normalize(nil, []string{"a", "b"}, nil, nil)
	if joined.Key() == split.Key() {
		t.Error("separator inside a value must not collide")
	}
}
