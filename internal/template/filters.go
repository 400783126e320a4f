// internal/template/filters.go
package template

import (
	"strconv"
	"strings"
	"time"
)

// applyFilter formats a value through a named filter. Unknown filters and
// unconvertible values fall back to the unfiltered string, so a template
// written against a newer filter set still renders.
func applyFilter(value interface{}, filter, arg string) string {
	raw := stringify(value)

	switch filter {
	case "":
		return raw

	case "currency":
		f, ok := toFloat(value)
		if !ok {
			return raw
		}
		return "$" + groupThousands(f, 2)

	case "number":
		f, ok := toFloat(value)
		if !ok {
			return raw
		}
		decimals := 0
		if arg != "" {
			if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
				decimals = n
			}
		}
		return groupThousands(f, decimals)

	case "percent":
		f, ok := toFloat(value)
		if !ok {
			return raw
		}
		return strconv.FormatFloat(f, 'f', 1, 64) + "%"

	case "date":
		t, ok := toTime(value)
		if !ok {
			return raw
		}
		layout := "Jan 2, 2006"
		if arg != "" {
			layout = arg
		}
		return t.Format(layout)

	case "upper":
		return strings.ToUpper(raw)

	case "lower":
		return strings.ToLower(raw)

	default:
		return raw
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// groupThousands formats f with fixed decimals and comma separators.
func groupThousands(f float64, decimals int) string {
	s := strconv.FormatFloat(f, 'f', decimals, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(intPart[i : i+3])
	}
	return sign + sb.String() + fracPart
}
