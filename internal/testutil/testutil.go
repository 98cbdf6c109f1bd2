// Package testutil provides shared test helpers for setting up vaults and
// search indexes.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/mural/internal/index"
	"github.com/starford/mural/internal/storage"
)

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite index that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Vault is a temporary vault with per-test config and data directories.
type Vault struct {
	Resolver *storage.Resolver
	FS       *storage.FS
	Root     string
}

// TestVault creates a temporary vault. The vault starts at the resolver's
// default location inside the data directory.
func TestVault(t *testing.T) *Vault {
	t.Helper()
	base := t.TempDir()
	r := storage.NewResolver(filepath.Join(base, "config"), filepath.Join(base, "data"))
	fs := storage.NewFS(r)
	root, err := fs.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	return &Vault{Resolver: r, FS: fs, Root: root}
}

// Eventually polls fn until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error(msg)
}
