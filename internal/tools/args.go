package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args are the arguments of one call. After the dispatcher has normalized
// them, integers are int64, numbers float64 and strings string.
type Args map[string]any

func (a Args) Clone() Args {
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Has reports whether key holds a usable value. Empty strings do not count.
func (a Args) Has(key string) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (a Args) Int64(key string) (int64, bool) {
	return toInt64(a[key])
}

func (a Args) Float(key string) (float64, bool) {
	return toFloat(a[key])
}

func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}

func (a Args) IntOr(key string, def int64) int64 {
	if v, ok := a.Int64(key); ok {
		return v
	}
	return def
}

func (a Args) FloatOr(key string, def float64) float64 {
	if v, ok := a.Float(key); ok {
		return v
	}
	return def
}

func (a Args) StringOr(key, def string) string {
	if s := a.String(key); s != "" {
		return s
	}
	return def
}

// Canonical renders the arguments deterministically. Two calls with the same
// name and canonical arguments are the same call.
func (a Args) Canonical() string {
	// encoding/json sorts map keys.
	data, err := json.Marshal(map[string]any(a))
	if err != nil {
		return fmt.Sprint(map[string]any(a))
	}
	return string(data)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// normalize coerces args to the schema types, returning the names of the
// arguments that could not be coerced. Unknown arguments are dropped.
func normalize(schema Schema, args Args) (Args, []string) {
	out := make(Args, len(args))
	var bad []string
	for key, value := range args {
		prop, ok := schema.Properties[key]
		if !ok || value == nil {
			continue
		}
		switch prop.Type {
		case "integer":
			n, ok := toInt64(value)
			if !ok {
				bad = append(bad, key)
				continue
			}
			out[key] = n
		case "number":
			f, ok := toFloat(value)
			if !ok {
				bad = append(bad, key)
				continue
			}
			out[key] = f
		case "boolean":
			switch b := value.(type) {
			case bool:
				out[key] = b
			case string:
				parsed, err := strconv.ParseBool(b)
				if err != nil {
					bad = append(bad, key)
					continue
				}
				out[key] = parsed
			default:
				bad = append(bad, key)
			}
		default:
			switch s := value.(type) {
			case string:
				out[key] = s
			case float64, int, int64, json.Number:
				out[key] = fmt.Sprint(s)
			default:
				bad = append(bad, key)
				continue
			}
			if len(prop.Enum) > 0 && !contains(prop.Enum, out.String(key)) {
				bad = append(bad, key)
				delete(out, key)
			}
		}
	}
	return out, bad
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
