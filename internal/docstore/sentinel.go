package docstore

import "time"

// Sentinel write values. They are resolved by the store at commit time and
// are never stored literally.

type serverTimestamp struct{}

type increment struct{ By int64 }

type arrayUnion struct{ Values []any }

// ServerTimestamp resolves to the store's commit time.
func ServerTimestamp() any { return serverTimestamp{} }

// Increment adds n to the current numeric value; a missing field is
// treated as 0.
func Increment(n int64) any { return increment{By: n} }

// ArrayUnion appends values not already present in the array field.
func ArrayUnion(values ...any) any { return arrayUnion{Values: values} }

// ResolveSentinels materializes sentinel values against the current field
// state. Shared by store implementations; now is the commit timestamp.
func ResolveSentinels(current, incoming map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(incoming))
	for k, v := range incoming {
		switch sv := v.(type) {
		case serverTimestamp:
			out[k] = now
		case increment:
			out[k] = asInt64(current[k]) + sv.By
		case arrayUnion:
			out[k] = unionArray(current[k], sv.Values)
		case map[string]any:
			var cur map[string]any
			if m, ok := current[k].(map[string]any); ok {
				cur = m
			}
			out[k] = ResolveSentinels(cur, sv, now)
		default:
			out[k] = v
		}
	}
	return out
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func unionArray(current any, add []any) []any {
	var out []any
	seen := make(map[any]bool)
	appendOne := func(v any) {
		// Only comparable values participate in dedup; anything else is
		// appended as-is.
		switch v.(type) {
		case map[string]any, []any:
			out = append(out, v)
		default:
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	switch cur := current.(type) {
	case []any:
		for _, v := range cur {
			appendOne(v)
		}
	case []string:
		for _, v := range cur {
			appendOne(v)
		}
	}
	for _, v := range add {
		appendOne(v)
	}
	return out
}
