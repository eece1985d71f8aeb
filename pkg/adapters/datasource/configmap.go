package datasource

import (
	"strconv"
	"strings"
)

// GetString returns the first non-empty string stored under any of keys.
func GetString(config map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := config[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// GetInt reads an integer that may arrive as a JSON number, a Go int or a string.
func GetInt(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case float64: // JSON numbers are float64
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// ResolveConnectionConfig merges a caller's connection fields over
// configured defaults. Empty request values do not mask defaults, so the
// lookup order for every field is request, then defaults, then whatever
// built-in value the engine's FromMap applies.
func ResolveConnectionConfig(request, defaults map[string]any) map[string]any {
	merged := make(map[string]any, len(request)+len(defaults))
	for k, v := range defaults {
		if !isEmptyValue(v) {
			merged[k] = v
		}
	}
	for k, v := range request {
		if !isEmptyValue(v) {
			merged[k] = v
		}
	}
	return merged
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case int:
		return val == 0
	case float64:
		return val == 0
	}
	return false
}
