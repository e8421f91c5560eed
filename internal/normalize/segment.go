package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// Segment is one decoded provider chunk, block, element or page. Providers
// disagree on field names and types, so every read goes through accessors
// that try candidate keys in priority order.
type Segment map[string]any

// DecodeSegments decodes a JSON array of objects. Entries that are not objects
// are dropped.
func DecodeSegments(data []byte) ([]Segment, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding segments: %w", err)
	}
	return AsSegments(raw), nil
}

// AsSegments converts a decoded JSON list into segments, skipping anything
// that is not an object.
func AsSegments(raw []any) []Segment {
	out := make([]Segment, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			slog.Debug("normalize.AsSegments: skipping malformed segment", "index", i, "type", fmt.Sprintf("%T", item))
			continue
		}
		out = append(out, Segment(m))
	}
	return out
}

// Has reports whether any of keys is present with a non-nil value.
func (s Segment) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := s[k]; ok && v != nil {
			return true
		}
	}
	return false
}

// Int returns the first candidate that coerces to an integer. String values
// such as "3" are parsed.
func (s Segment) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		v, ok := s[k]
		if !ok || v == nil {
			continue
		}
		if n, ok := toInt(v); ok {
			return n, true
		}
	}
	return 0, false
}

// String returns the first candidate holding a non-empty string.
func (s Segment) String(keys ...string) string {
	for _, k := range keys {
		if v, ok := s[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Bool returns the first candidate holding a boolean.
func (s Segment) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := s[k].(bool); ok {
			return v, true
		}
	}
	return false, false
}

// Object returns the first candidate holding a nested object, or nil.
func (s Segment) Object(keys ...string) Segment {
	for _, k := range keys {
		if v, ok := s[k].(map[string]any); ok {
			return Segment(v)
		}
	}
	return nil
}

// List returns the object entries of the first candidate holding a list.
func (s Segment) List(keys ...string) []Segment {
	for _, k := range keys {
		if v, ok := s[k].([]any); ok {
			return AsSegments(v)
		}
	}
	return nil
}

// Raw returns the first candidate value as-is.
func (s Segment) Raw(keys ...string) any {
	for _, k := range keys {
		if v, ok := s[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
