package dataset

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradelens/analytics-engine/internal/model"
)

// KeyLength is the number of digits of a normalized product key.
const KeyLength = 8

// LabelSeparator joins a product code and its description in labels.
const LabelSeparator = " – "

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizeProductKey strips every non-digit, left-pads with zeros to 8
// digits and truncates longer keys to their first 8 digits.
//
//	"12.34-56"    → "00123456"
//	"0101.21.00"  → "01012100"
//	"1234567890"  → "12345678"
func NormalizeProductKey(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) >= KeyLength {
		return digits[:KeyLength]
	}
	return strings.Repeat("0", KeyLength-len(digits)) + digits
}

// CodeAtLevel returns the first l digits of a normalized key.
func CodeAtLevel(key string, l model.Level) string {
	return key[:int(l)]
}

// FormatCode applies the level's punctuation: levels 6 and 8 get a dot
// after the fourth digit ("0101.21", "0101.2100").
func FormatCode(code string, l model.Level) string {
	if (l == model.Level6 || l == model.Level8) && len(code) > 4 {
		return code[:4] + "." + code[4:]
	}
	return code
}

// FormatLabel builds the display label of a code, e.g. "0101.21 – Horses".
func FormatLabel(code string, l model.Level, description string) string {
	return FormatCode(code, l) + LabelSeparator + description
}

// parseYear accepts integers and integral floats ("2020", "2020.0").
func parseYear(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if y, err := strconv.Atoi(raw); err == nil {
		return y, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// parseValue returns the amount and whether it was usable as-is.
// Unparsable amounts become zero, negative amounts are clamped to zero.
func parseValue(raw string) (decimal.Decimal, valueStatus) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, valueMissing
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, valueInvalid
	}
	if v.IsNegative() {
		return decimal.Zero, valueNegative
	}
	return v, valueOK
}

type valueStatus int

const (
	valueOK valueStatus = iota
	valueMissing
	valueInvalid
	valueNegative
)

func textOrUnknown(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unknown
	}
	return raw
}

// Unknown replaces empty text fields.
const Unknown = "Unknown"
