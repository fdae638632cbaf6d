package model

import (
	"sort"
	"strconv"
	"strings"
)

// FilterSpec is the canonical query shape. Slices are sorted and free of
// duplicates; build it with filter.Normalize or NewFilterSpec.
//
// Empty Years means all years, empty Countries/Products means no filter on
// that dimension. Level is always valid.
type FilterSpec struct {
	Years     []int    `json:"years"`
	Countries []string `json:"countries"`
	Level     Level    `json:"level"`
	Products  []string `json:"products"`
}

// NewFilterSpec canonicalises already-typed selections.
func NewFilterSpec(years []int, countries []string, level Level, products []string) FilterSpec {
	if !level.Valid() {
		level = DefaultLevel
	}
	return FilterSpec{
		Years:     uniqueInts(years),
		Countries: uniqueStrings(countries),
		Level:     level,
		Products:  uniqueStrings(products),
	}
}

// Key returns a string that is equal for two specs iff their contents are equal.
func (f FilterSpec) Key() string {
	var b strings.Builder
	b.WriteString("y=")
	for i, y := range f.Years {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(y))
	}
	b.WriteString(";c=")
	writeQuoted(&b, f.Countries)
	b.WriteString(";l=")
	b.WriteString(strconv.Itoa(int(f.Level)))
	b.WriteString(";p=")
	writeQuoted(&b, f.Products)
	return b.String()
}

// Quoting keeps values containing separators from colliding.
func writeQuoted(b *strings.Builder, values []string) {
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(v))
	}
}

// YearSet returns the years as a lookup set, nil when no year filter applies.
func (f FilterSpec) YearSet() map[int]struct{} {
	if len(f.Years) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(f.Years))
	for _, y := range f.Years {
		set[y] = struct{}{}
	}
	return set
}

// CountrySet returns the countries as a lookup set, nil when unfiltered.
func (f FilterSpec) CountrySet() map[string]struct{} { return stringSet(f.Countries) }

// ProductSet returns the product codes as a lookup set, nil when unfiltered.
func (f FilterSpec) ProductSet() map[string]struct{} { return stringSet(f.Products) }

func stringSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func uniqueInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}
