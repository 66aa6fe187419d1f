// Package decode holds the lenient coercions used to read loosely typed
// document fields into typed values.
//
// Rules:
//   - strings are trimmed; an empty result is absent
//   - integers accept any numeric representation but never booleans
//   - NonNegInt additionally treats negative numbers as absent
//   - booleans accept only real booleans, anything else yields the default
package decode

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// String returns the trimmed string and true when v is a non-empty string.
func String(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// StringOr returns String(v) or def when absent.
func StringOr(v any, def string) string {
	if s, ok := String(v); ok {
		return s
	}
	return def
}

// OptString returns a pointer to the trimmed string, or nil when absent.
func OptString(v any) *string {
	if s, ok := String(v); ok {
		return &s
	}
	return nil
}

// Int coerces v to an integer. Fractions are truncated. Booleans, NaN and
// infinities are absent.
func Int(v any) (int64, bool) {
	switch n := v.(type) {
	case bool:
		return 0, false
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return floatToInt(f)
		}
	}
	return 0, false
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// IntOr returns Int(v) or def when absent.
func IntOr(v any, def int64) int64 {
	if n, ok := Int(v); ok {
		return n
	}
	return def
}

// NonNegInt is Int restricted to values >= 0.
func NonNegInt(v any) (int64, bool) {
	n, ok := Int(v)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// OptNonNegInt returns a pointer to NonNegInt(v), or nil when absent.
func OptNonNegInt(v any) *int64 {
	if n, ok := NonNegInt(v); ok {
		return &n
	}
	return nil
}

// Count reads a counter field, flooring drifted negative values at zero.
func Count(v any) int64 {
	n, ok := Int(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// Bool returns v when it is a boolean, otherwise def.
func Bool(v any, def bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Time accepts a time.Time or an RFC 3339 string.
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t))
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

// OptTime returns a pointer to Time(v), or nil when absent.
func OptTime(v any) *time.Time {
	if t, ok := Time(v); ok {
		return &t
	}
	return nil
}

// Map returns v as a map when it is one.
func Map(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok && m != nil
}
