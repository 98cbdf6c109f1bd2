package index

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mural/internal/storage"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func followedVault(t *testing.T, cb EventCallback) (string, *DB) {
	t.Helper()
	fs, root := testVault(t)
	db := testDB(t)
	logger := quietLogger()
	if err := Sync(db, fs, logger); err != nil {
		t.Fatal(err)
	}
	w := storage.NewWatcher(fs, logger, 20*time.Millisecond)
	w.Subscribe(Follow(db, fs, logger, cb))
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return root, db
}

func TestFollow_NewFileIndexed(t *testing.T) {
	var mu sync.Mutex
	var events []string
	root, db := followedVault(t, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.md")
		return cs != ""
	}, "new file not indexed")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == EventIndexed+":new.md" {
				return true
			}
		}
		return false
	}, "expected indexed:new.md callback")
}

func TestFollow_DeleteRemovesFromIndex(t *testing.T) {
	root, db := followedVault(t, nil)
	_ = os.WriteFile(filepath.Join(root, "del.md"), []byte("# Delete Me"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs != ""
	}, "precondition: file should be indexed")

	_ = os.Remove(filepath.Join(root, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestFollow_RenameReconciles(t *testing.T) {
	root, db := followedVault(t, nil)
	_ = os.WriteFile(filepath.Join(root, "old.md"), []byte("# Rename"), 0o644)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("old.md")
		return cs != ""
	}, "precondition: file should be indexed")

	_ = os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.md")
		newCS, _ := db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}

func TestFollow_IgnoresOtherVault(t *testing.T) {
	fs, _ := testVault(t)
	db := testDB(t)
	Follow(db, fs, quietLogger(), nil)(storage.Listing{Root: "/elsewhere"})
	if stamps, _ := db.AllStamps(); len(stamps) != 0 {
		t.Errorf("stamps = %v", stamps)
	}
}
