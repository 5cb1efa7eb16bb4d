package wamp

import (
	"encoding/json"
	"math"
)

// String returns d[key] when it is a string.
func String(d Dict, key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns d[key] when it is a bool.
func Bool(d Dict, key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Int64 returns d[key] as an integer and whether it held a number.
func Int64(d Dict, key string) (int64, bool) {
	return toInt64(d[key])
}

// Strings returns the string elements of d[key] when it is a list.
func Strings(d Dict, key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case List:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
