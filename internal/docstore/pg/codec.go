package pg

import (
	"time"
)

// JSONB has no timestamp type, so time.Time values round-trip through a
// {"$time": rfc3339} wrapper object.

const timeKey = "$time"

// Fixed-width fraction keeps the encoded form lexicographically sortable,
// which the query compiler relies on for ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTimes(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{timeKey: val.UTC().Format(timeLayout)}
	case map[string]any:
		return encodeTimes(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	default:
		return v
	}
}

func decodeTimes(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = decodeValue(v)
	}
	return out
}

func decodeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if len(val) == 1 {
			if raw, ok := val[timeKey].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
					return t
				}
			}
		}
		return decodeTimes(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return v
	}
}
