// Package config provides configuration helpers shared by connectors and the
// ingestion CLI: loose parameter maps decoded from recipes, and environment
// lookups with defaults.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PARAMETER MAPS
// Connector configs arrive as map[string]any decoded from YAML recipes.
// Each accessor accepts several aliases (camelCase and snake_case) and returns
// the first one present.
// =============================================================================

// String returns the first non-empty string value found under keys.
func String(params map[string]any, keys ...string) string {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case fmt.Stringer:
			if s := strings.TrimSpace(t.String()); s != "" {
				return s
			}
		case int, int64, float64, bool:
			return fmt.Sprint(t)
		}
	}
	return ""
}

// StringDefault is String with a fallback.
func StringDefault(params map[string]any, defaultVal string, keys ...string) string {
	if s := String(params, keys...); s != "" {
		return s
	}
	return defaultVal
}

// Int returns the first integer value found under keys. Numeric strings are
// accepted; anything else yields an error naming the key.
func Int(params map[string]any, defaultVal int, keys ...string) (int, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case int:
			return t, nil
		case int64:
			return int(t), nil
		case float64:
			if t != float64(int(t)) {
				return 0, fmt.Errorf("%s: expected an integer, got %v", key, t)
			}
			return int(t), nil
		case string:
			i, err := strconv.Atoi(strings.TrimSpace(t))
			if err != nil {
				return 0, fmt.Errorf("%s: expected an integer, got %q", key, t)
			}
			return i, nil
		default:
			return 0, fmt.Errorf("%s: expected an integer, got %T", key, v)
		}
	}
	return defaultVal, nil
}

// Bool returns the first boolean value found under keys.
func Bool(params map[string]any, defaultVal bool, keys ...string) (bool, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(t))
			if err != nil {
				return false, fmt.Errorf("%s: expected a boolean, got %q", key, t)
			}
			return b, nil
		default:
			return false, fmt.Errorf("%s: expected a boolean, got %T", key, v)
		}
	}
	return defaultVal, nil
}

// Duration reads a Go duration string ("30s") or a number of seconds.
func Duration(params map[string]any, defaultVal time.Duration, keys ...string) (time.Duration, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(t))
			if err != nil {
				return 0, fmt.Errorf("%s: %w", key, err)
			}
			return d, nil
		case int:
			return time.Duration(t) * time.Second, nil
		case float64:
			return time.Duration(t * float64(time.Second)), nil
		default:
			return 0, fmt.Errorf("%s: expected a duration, got %T", key, v)
		}
	}
	return defaultVal, nil
}

// StringSlice returns a list of strings. A single string is treated as a
// one-element list.
func StringSlice(params map[string]any, keys ...string) ([]string, bool, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case []string:
			return append([]string(nil), t...), true, nil
		case string:
			return []string{t}, true, nil
		case []any:
			out := make([]string, 0, len(t))
			for i, item := range t {
				s, ok := item.(string)
				if !ok {
					return nil, true, fmt.Errorf("%s[%d]: expected a string, got %T", key, i, item)
				}
				out = append(out, s)
			}
			return out, true, nil
		default:
			return nil, true, fmt.Errorf("%s: expected a list of strings, got %T", key, v)
		}
	}
	return nil, false, nil
}

// Map returns a nested parameter map. YAML may decode nested maps with
// non-string keys, those are stringified.
func Map(params map[string]any, keys ...string) (map[string]any, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			return t, nil
		case map[any]any:
			out := make(map[string]any, len(t))
			for k, val := range t {
				out[fmt.Sprint(k)] = val
			}
			return out, nil
		default:
			return nil, fmt.Errorf("%s: expected a mapping, got %T", key, v)
		}
	}
	return nil, nil
}

// StringMap flattens a nested mapping into string values.
func StringMap(params map[string]any, keys ...string) (map[string]string, error) {
	m, err := Map(params, keys...)
	if err != nil || m == nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}

// UnknownKeys lists the keys of params not present in allowed, sorted.
func UnknownKeys(params map[string]any, allowed ...string) []string {
	known := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		known[k] = struct{}{}
	}
	var unknown []string
	for k := range params {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

// Env returns the environment variable or defaultVal when unset/empty.
func Env(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// EnvBool returns the boolean environment variable or defaultVal.
func EnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
