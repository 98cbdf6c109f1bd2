package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/testutil"
)

func testStack(t *testing.T) *stack {
	t.Helper()
	base := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.App.DataDir = filepath.Join(base, "data")
	cfg.App.ConfigDir = filepath.Join(base, "config")
	cfg.Index.Path = filepath.Join(base, "data", "index.db")
	cfg.Autosave.WatchDebounce = 20 * time.Millisecond

	s, err := newStack(context.Background(), cfg, testutil.Logger())
	if err != nil {
		t.Fatalf("newStack: %v", err)
	}
	t.Cleanup(func() { _ = s.close(context.Background()) })
	return s
}

func (s *stack) call(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:50000"
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *stack) searchHas(t *testing.T, query, path string) bool {
	t.Helper()
	w := s.call(t, http.MethodGet, "/api/search?q="+query, nil)
	return w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"path":"`+path+`"`)
}

func TestStackHealthAndLoopback(t *testing.T) {
	s := testStack(t)
	if w := s.call(t, http.MethodGet, "/health/ready", nil); w.Code != http.StatusOK {
		t.Errorf("ready = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("remote client = %d, want 403", w.Code)
	}
}

func TestStackCloseFlushesEdits(t *testing.T) {
	s := testStack(t)
	w := s.call(t, http.MethodPost, "/api/notes", map[string]any{"name": "journal", "type": "markdown"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	if w := s.call(t, http.MethodPut, "/api/notes/"+n.ID+"/content", map[string]any{"content": "day one"}); w.Code != http.StatusOK {
		t.Fatalf("edit = %d", w.Code)
	}

	root, err := s.files.Root()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "journal.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "day one" {
		t.Errorf("file = %q", data)
	}
}

func TestStackWatcherFeedsIndex(t *testing.T) {
	s := testStack(t)
	if err := s.watcher.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	root, err := s.files.Root()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "outside.md"), []byte("written by another editor"), 0o644); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, 3*time.Second, func() bool {
		return s.searchHas(t, "editor", "outside.md")
	}, "external file never reached the index")
}

func TestStackVaultSwitchReindexes(t *testing.T) {
	s := testStack(t)
	if w := s.call(t, http.MethodPost, "/api/files", map[string]any{"name": "old", "type": "markdown", "content": "first vault"}); w.Code != http.StatusCreated {
		t.Fatalf("create = %d, %s", w.Code, w.Body.String())
	}
	if !s.searchHas(t, "vault", "old.md") {
		t.Fatal("old.md not indexed")
	}

	next := t.TempDir()
	if err := os.WriteFile(filepath.Join(next, "fresh.md"), []byte("second vault"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := s.call(t, http.MethodPost, "/api/vault", map[string]any{"path": next}); w.Code != http.StatusOK {
		t.Fatalf("switch = %d, %s", w.Code, w.Body.String())
	}
	if !s.searchHas(t, "vault", "fresh.md") {
		t.Error("fresh.md not indexed after switch")
	}
	if s.searchHas(t, "vault", "old.md") {
		t.Error("old vault entries survived the switch")
	}
}
