package index

import (
	"log/slog"

	"github.com/starford/mural/internal/storage"
)

// Index change kinds passed to EventCallback.
const (
	EventIndexed = "indexed"
	EventRemoved = "removed"
)

// EventCallback is called after a listing-driven index change.
type EventCallback func(kind string, path string)

// Follow returns a vault watcher subscriber that reconciles the index with
// every published listing. Listings from a vault other than the current
// one are ignored. cb, if non-nil, is called after each index mutation.
func Follow(db *DB, files storage.Provider, logger *slog.Logger, cb EventCallback) func(storage.Listing) {
	return func(l storage.Listing) {
		root, err := files.Root()
		if err != nil || root != l.Root {
			return
		}
		if err := apply(db, files, l.Files, logger, cb); err != nil {
			logger.Warn("index: apply listing failed", slog.String("error", err.Error()))
		}
	}
}
