package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reGermanDate = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	reISODate    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reNumberBody = regexp.MustCompile(`^[+-]?[0-9.,']+$`)
)

var nullish = map[string]struct{}{
	"null": {}, "none": {}, "n/a": {}, "na": {}, "-": {}, "\u2014": {}, "unbekannt": {}, "nicht angegeben": {},
}

var currencySymbols = map[string]string{
	"€": "EUR", "$": "USD", "£": "GBP", "CHF": "CHF", "FR.": "CHF",
}

// coerceString trims strings and turns empty or placeholder values into nil.
// Numbers are rendered back to text (order numbers sometimes arrive as numbers).
// ok is false when the value has a type that cannot be a string.
func coerceString(v any) (out any, ok bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		s := strings.TrimSpace(t)
		if _, isNull := nullish[strings.ToLower(s)]; isNull || s == "" {
			return nil, true
		}
		return s, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return nil, false
	}
}

// coerceNumber accepts JSON numbers and numeric strings in plain or German
// notation ("1.234,56", "19,98 €", "10 %"). ok is false when a value was
// present but not numeric.
func coerceNumber(v any) (out any, ok bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, false
		}
		return f, true
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if _, isNull := nullish[strings.ToLower(s)]; isNull || s == "" {
			return nil, true
		}
		f, err := ParseLocaleNumber(s)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

// ParseLocaleNumber parses a human-formatted amount. When both '.' and ','
// occur, the later one is the decimal separator. A lone ',' is decimal; a lone
// '.' is decimal unless it repeats (then it groups thousands).
func ParseLocaleNumber(s string) (float64, error) {
	orig := s
	s = strings.ToUpper(strings.TrimSpace(s))
	for sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	for _, code := range []string{"EUR", "USD", "GBP", "%"} {
		s = strings.ReplaceAll(s, code, "")
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	if s == "" || !reNumberBody.MatchString(s) {
		return 0, fmt.Errorf("not a number: %q", orig)
	}
	s = strings.ReplaceAll(s, "'", "")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", orig)
	}
	return f, nil
}

// coercePosition returns a positive integer position, or ok=false.
func coercePosition(v any) (int, bool) {
	n, ok := coerceNumber(v)
	if !ok || n == nil {
		return 0, false
	}
	f := n.(float64)
	if f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// normalizeDate rewrites DD.MM.YYYY and unpadded ISO dates to YYYY-MM-DD.
// Anything else is returned unchanged.
func normalizeDate(s string) string {
	if m := reGermanDate.FindStringSubmatch(s); m != nil {
		return isoDate(m[3], m[2], m[1])
	}
	if m := reISODate.FindStringSubmatch(s); m != nil {
		return isoDate(m[1], m[2], m[3])
	}
	return s
}

func isoDate(year, month, day string) string {
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

// normalizeCurrency upper-cases codes and maps common symbols to ISO 4217.
func normalizeCurrency(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	if code, ok := currencySymbols[u]; ok {
		return code
	}
	return u
}
