// Package format renders engine values the way the dashboard shows them.
package format

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Currency is the unit every amount in the dataset is expressed in.
const Currency = "CHF"

var humanUnits = []struct {
	exp    int32
	suffix string
}{
	{0, ""},
	{3, "T"},
	{6, "M"},
	{9, "Bn"},
	{12, "Tn"},
}

// Human abbreviates an amount rounded to one decimal: 12.5T (thousand),
// 1.2M, 3.4Bn, 2Tn. A value that rounds up to 1000 moves to the next unit,
// so 999,999 prints as 1M.
func Human(v decimal.Decimal) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	thousand := decimal.NewFromInt(1000)
	for i, u := range humanUnits {
		q := v.Shift(-u.exp).Round(1)
		if q.LessThan(thousand) || i == len(humanUnits)-1 {
			return sign + humanize.FtoaWithDigits(q.InexactFloat64(), 1) + u.suffix
		}
	}
	return ""
}

// Money prints a rounded amount with apostrophe grouping: "CHF 1'234'567".
func Money(v decimal.Decimal) string {
	grouped := humanize.Comma(v.Round(0).IntPart())
	return Currency + " " + strings.ReplaceAll(grouped, ",", "'")
}

// YearPeriod describes a year selection: "All years", "2020" or "2019–2021".
func YearPeriod(years []int) string {
	switch len(years) {
	case 0:
		return "All years"
	case 1:
		return strconv.Itoa(years[0])
	}
	ordered := append([]int(nil), years...)
	sort.Ints(ordered)
	return strconv.Itoa(ordered[0]) + "–" + strconv.Itoa(ordered[len(ordered)-1])
}

// Countries describes a country selection.
func Countries(countries []string) string {
	if len(countries) == 0 {
		return "All countries"
	}
	return strings.Join(countries, ", ")
}

// Shorten cuts s to max runes, marking the cut with an ellipsis.
func Shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
