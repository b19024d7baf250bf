package domain

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeTags accepts either a comma-separated string or a slice and
// returns a trimmed slice with empties dropped.
func NormalizeTags(tags any) Tags {
	switch v := tags.(type) {
	case nil:
		return Tags{}
	case Tags:
		return cleanTags(v)
	case []any:
		out := make(Tags, 0, len(v))
		for _, t := range v {
			out = append(out, fmt.Sprint(t))
		}
		return cleanTags(out)
	case string:
		return cleanTags(strings.Split(v, ","))
	default:
		return Tags{}
	}
}

func cleanTags(in []string) Tags {
	out := make(Tags, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Truncate cuts s to at most n runes for summary fields.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Loose accessors for document data bags. Missing or mistyped fields
// decode to zero values; required-field checks live with the callers.

func getString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]any, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}

func getInt(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func getTime(data map[string]any, key string) time.Time {
	if v, ok := data[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func getMap(data map[string]any, key string) map[string]any {
	if v, ok := data[key].(map[string]any); ok {
		return v
	}
	return nil
}

func getStrings(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, fmt.Sprint(s))
		}
		return out
	default:
		return nil
	}
}

// for debug
func (q *Question) String() string {
	return fmt.Sprintf("[id:%s, title:%s, author:%s, likes:%d, tags:%v, created:%s]",
		q.Id, q.Title, q.Author.Uid, q.Likes, q.Tags, q.CreatedAt.Format(time.StampMilli))
}

func (m *ChatMessage) String() string {
	return fmt.Sprintf("[id:%s, from:%s, text:%s, created:%s]", m.Id, m.From, m.Text, m.CreatedAt.Format(time.StampMilli))
}
