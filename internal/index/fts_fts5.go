//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO files_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
}

func ftsReset(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM files_fts`)
}

// matchExpr quotes every term as an FTS5 prefix phrase so punctuation in
// user input cannot form query syntax.
func matchExpr(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, `"`+strings.ReplaceAll(t, `"`, `""`)+`"*`)
	}
	return strings.Join(parts, " ")
}

// Search performs an FTS5 full-text search and returns matching results
// with snippets. A query with only filters lists matching files by
// recency.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := ParseQuery(query)
	if q.Empty() {
		return nil, nil
	}

	conds, args := q.filters()
	var rows *sql.Rows
	var err error
	if len(q.Terms) == 0 {
		rows, err = db.conn.Query(`
			SELECT path, title, kind, substr(body, 1, 200)
			FROM files
			WHERE `+strings.Join(conds, " AND ")+`
			ORDER BY modified_ms DESC
			LIMIT ?
		`, append(args, limit)...)
	} else {
		where := "files_fts MATCH ?"
		if len(conds) > 0 {
			where += " AND " + strings.Join(conds, " AND ")
		}
		rows, err = db.conn.Query(`
			SELECT files_fts.path,
			       files_fts.title,
			       files.kind,
			       snippet(files_fts, 2, '<b>', '</b>', '...', 64)
			FROM files_fts
			JOIN files ON files.path = files_fts.path
			WHERE `+where+`
			ORDER BY rank
			LIMIT ?
		`, append(append([]any{matchExpr(q.Terms)}, args...), limit)...)
	}
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}
