package storage

import (
	"fmt"
	"strings"
)

// inClause renders query (a format string with one %s placeholder) with a
// `?, ?, ...` placeholder list sized to ids, returning the finished query
// alongside its args in the matching order. Used by the batch-delete
// helpers internal/ops's retention prune drives with explicit id lists
// rather than a LIMIT-bounded subquery, so the caller knows exactly which
// rows were removed.
func inClause(query string, ids []int64) (string, []any) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	return fmt.Sprintf(query, strings.Join(placeholders, ", ")), args
}
