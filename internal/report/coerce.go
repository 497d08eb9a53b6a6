package report

import (
	"encoding/json"
	"strconv"
	"strings"
)

// CoerceCount converts a loosely-typed value into a non-negative integer.
// Goal values arrive from user payloads as JSON numbers, strings, or nothing;
// anything unparseable or negative coerces to zero rather than erroring.
func CoerceCount(v any) int {
	var n float64
	switch t := v.(type) {
	case nil:
		return 0
	case int:
		n = float64(t)
	case int32:
		n = float64(t)
	case int64:
		n = float64(t)
	case float32:
		n = float64(t)
	case float64:
		n = t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		n = f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		n = f
	case bool:
		return 0
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}
