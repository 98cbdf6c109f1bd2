package index

import (
	"strings"

	"github.com/starford/mural/internal/models"
)

// Query is a parsed search string. Plain words must all match; "#tag"
// restricts to files carrying that tag; "type:markdown" or "type:drawing"
// restricts the file kind.
type Query struct {
	Terms []string
	Tags  []string
	Kind  models.Kind
}

// ParseQuery splits a search string into terms and filters. Unknown
// type: values are kept as plain terms.
func ParseQuery(s string) Query {
	var q Query
	for _, f := range strings.Fields(s) {
		switch {
		case strings.HasPrefix(f, "#") && len(f) > 1:
			q.Tags = append(q.Tags, f[1:])
		case strings.HasPrefix(f, "type:"):
			kind := models.Kind(strings.TrimPrefix(f, "type:"))
			if kind.Valid() {
				q.Kind = kind
				continue
			}
			q.Terms = append(q.Terms, f)
		default:
			q.Terms = append(q.Terms, f)
		}
	}
	return q
}

// Empty reports whether the query matches nothing in particular.
func (q Query) Empty() bool {
	return len(q.Terms) == 0 && len(q.Tags) == 0 && q.Kind == ""
}

// filters returns SQL conditions over the files table for the tag and
// kind filters, with their arguments.
func (q Query) filters() ([]string, []any) {
	var conds []string
	var args []any
	for _, tag := range q.Tags {
		conds = append(conds, `files.tags LIKE ?`)
		args = append(args, `%"`+escapeLike(tag)+`"%`)
	}
	if q.Kind != "" {
		conds = append(conds, `files.kind = ?`)
		args = append(args, string(q.Kind))
	}
	return conds, args
}

// escapeLike strips LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
