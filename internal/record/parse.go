package record

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLap converts an elapsed-time string in M:SS[.f] form to seconds.
// Empty input, "0", and strings without a colon all yield 0.0.
func ParseLap(s string) float64 {
	if s == "" || s == "0" || !strings.Contains(s, ":") {
		return 0.0
	}
	parts := strings.SplitN(s, ":", 2)
	return SafeFloat(parts[0], 0)*60.0 + SafeFloat(parts[1], 0)
}

// marginTokens maps the fixed margin vocabulary to fractional lengths.
var marginTokens = map[string]float64{
	"0":   0,
	"同着":  0,
	"ハナ":  1.0 / 16,
	"アタマ": 1.0 / 8,
	"クビ":  1.0 / 4,
	"1/2": 1.0 / 2,
	"1/4": 1.0 / 4,
	"3/4": 3.0 / 4,
	"大":   11,
}

// ParseMargin converts a margin-to-previous-finisher string into lengths.
// Composite strings such as "1.1/2" split on the separator and sum both
// halves recursively. Anything outside the fixed vocabulary falls back to
// reading the leading character as a digit; non-numeric content is an error
// rather than a silent zero.
func ParseMargin(s string) (float64, error) {
	if v, ok := marginTokens[s]; ok {
		return v, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '+' })
	if len(parts) >= 2 {
		whole, err := ParseMargin(parts[0])
		if err != nil {
			return 0, err
		}
		frac, err := ParseMargin(parts[1])
		if err != nil {
			return 0, err
		}
		return whole + frac, nil
	}
	for _, r := range s {
		d, err := strconv.ParseFloat(string(r), 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized margin %q", s)
		}
		return d, nil
	}
	return 0, fmt.Errorf("unrecognized margin %q", s)
}

// SafeInt parses s as an integer, returning def instead of an error.
func SafeInt(s string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// SafeFloat parses s as a float, returning def instead of an error.
func SafeFloat(s string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return v
}
