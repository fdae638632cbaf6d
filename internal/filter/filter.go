// Package filter turns loosely-typed selections coming from UI controls into
// a canonical model.FilterSpec. Normalize never fails: bad entries are
// dropped and an unknown level falls back to model.DefaultLevel.
package filter

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tradelens/analytics-engine/internal/model"
)

// Normalize builds the canonical FilterSpec. Each raw argument may be nil, a
// scalar (string, integer, float, json.Number) or a slice of those.
func Normalize(rawYears, rawCountries, rawLevel, rawProducts any) model.FilterSpec {
	return model.NewFilterSpec(
		Years(rawYears),
		Strings(rawCountries),
		Level(rawLevel),
		Strings(rawProducts),
	)
}

// Years parses every element as an integer year, silently discarding the rest.
func Years(raw any) []int {
	var years []int
	for _, v := range flatten(raw) {
		if y, ok := toInt(v); ok {
			years = append(years, y)
		}
	}
	return years
}

// Strings stringifies every element, discarding nil and empty values.
func Strings(raw any) []string {
	var out []string
	for _, v := range flatten(raw) {
		if s, ok := toString(v); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Level resolves a raw level selection, defaulting to model.DefaultLevel.
func Level(raw any) model.Level {
	switch v := raw.(type) {
	case model.Level:
		if v.Valid() {
			return v
		}
	case string:
		if l, ok := model.ParseLevel(v); ok {
			return l
		}
	case []string:
		if len(v) > 0 {
			return Level(v[0])
		}
	case []any:
		if len(v) > 0 {
			return Level(v[0])
		}
	default:
		if n, ok := toInt(raw); ok && model.Level(n).Valid() {
			return model.Level(n)
		}
	}
	return model.DefaultLevel
}

// flatten turns any supported shape into a list of scalars.
func flatten(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	default:
		return []any{v}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return floatToInt(n)
	case float32:
		return floatToInt(float64(n))
	case json.Number:
		return toInt(n.String())
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool, []any, map[string]any:
		return "", false
	default:
		return fmt.Sprint(s), true
	}
}
