package pg

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/askline-dev/askline/internal/docstore"
)

// compileQuery translates a docstore query into SQL over the documents
// table. Filters and ordering address JSONB fields.
func compileQuery(q docstore.Query) (string, []any) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString(`
	SELECT path, data, created_at, updated_at
	FROM documents
	WHERE collection = $1`)

	for _, f := range q.Filters {
		switch f.Op {
		case docstore.OpArrayContains:
			raw, _ := json.Marshal([]any{encodeValue(f.Value)})
			args = append(args, string(raw))
			fmt.Fprintf(&sb, " AND data->%s @> $%d::jsonb", quoteLiteral(f.Field), len(args))
		default: // equality
			raw, _ := json.Marshal(encodeValue(f.Value))
			args = append(args, string(raw))
			fmt.Fprintf(&sb, " AND data->%s = $%d::jsonb", quoteLiteral(f.Field), len(args))
		}
	}

	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// Timestamps are wrapped objects; fall back to the raw text value
		// for plain string fields. The fixed-width UTC encoding sorts
		// lexicographically.
		fmt.Fprintf(&sb, " ORDER BY COALESCE(data->%s->>'%s', data->>%s) %s, path %s",
			quoteLiteral(q.OrderBy), timeKey, quoteLiteral(q.OrderBy), dir, dir)
	}
	return sb.String(), args
}

func quoteLiteral(field string) string {
	return "'" + strings.ReplaceAll(field, "'", "''") + "'"
}
