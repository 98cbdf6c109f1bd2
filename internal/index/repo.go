package index

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/starford/mural/internal/models"
)

// FileRow represents a row in the files table.
type FileRow struct {
	Path       string
	Title      string
	Kind       models.Kind
	Checksum   string
	Tags       []string
	Size       int64
	ModifiedMs int64
}

// Stamp identifies a file version cheaply, without reading it.
type Stamp struct {
	ModifiedMs int64
	Size       int64
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string      `json:"path"`
	Title   string      `json:"title"`
	Kind    models.Kind `json:"type"`
	Snippet string      `json:"snippet"`
}

// UpsertFile inserts or replaces a file, its FTS entry, and links within a
// transaction.
func (db *DB) UpsertFile(f FileRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if f.Tags == nil {
		f.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(f.Tags)

	_, err = tx.Exec(`
		INSERT INTO files (path, title, kind, checksum, tags, body, size, modified_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title       = excluded.title,
			kind        = excluded.kind,
			checksum    = excluded.checksum,
			tags        = excluded.tags,
			body        = excluded.body,
			size        = excluded.size,
			modified_ms = excluded.modified_ms
	`, f.Path, f.Title, string(f.Kind), f.Checksum, string(tagsJSON), body, f.Size, f.ModifiedMs)
	if err != nil {
		return fmt.Errorf("index: upsert file: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, f.Path, f.Title, body, f.Tags); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, f.Path)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(f.Path, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteFile removes a file, its FTS entry, and outgoing links.
func (db *DB) DeleteFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM files WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a file, or empty string if
// not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM files WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllStamps returns the stamp of every indexed file keyed by path.
func (db *DB) AllStamps() (map[string]Stamp, error) {
	rows, err := db.conn.Query(`SELECT path, modified_ms, size FROM files`)
	if err != nil {
		return nil, fmt.Errorf("index: all stamps: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Stamp)
	for rows.Next() {
		var p string
		var s Stamp
		if err := rows.Scan(&p, &s.ModifiedMs, &s.Size); err != nil {
			return nil, err
		}
		out[p] = s
	}
	return out, rows.Err()
}

// Backlinks returns all file paths that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Kind, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
