//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the files.body column.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	// Body is already stored in the files table.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsReset(_ *sql.Tx) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). Files whose title matches the first term rank first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := ParseQuery(query)
	if q.Empty() {
		return nil, nil
	}

	conds, args := q.filters()
	for _, term := range q.Terms {
		like := "%" + escapeLike(term) + "%"
		conds = append(conds, `(files.title LIKE ? OR files.body LIKE ? OR files.tags LIKE ?)`)
		args = append(args, like, like, like)
	}
	titleRank := "0"
	if len(q.Terms) > 0 {
		titleRank = `files.title LIKE ?`
		args = append(args, "%"+escapeLike(q.Terms[0])+"%")
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT path, title, kind, substr(body, 1, 200)
		FROM files
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY `+titleRank+` DESC, modified_ms DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
