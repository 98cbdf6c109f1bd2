package index

import (
	"log/slog"

	"github.com/starford/mural/internal/checksum"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/parser"
	"github.com/starford/mural/internal/scene"
	"github.com/starford/mural/internal/storage"
)

// Sync lists the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, files storage.Provider, logger *slog.Logger) error {
	list, err := files.List()
	if err != nil {
		return err
	}
	return apply(db, files, list, logger, nil)
}

// apply reconciles the index with list. Files whose size and modification
// time match the indexed stamp are not read again.
func apply(db *DB, files storage.Provider, list []models.VaultFile, logger *slog.Logger, cb EventCallback) error {
	stamps, err := db.AllStamps()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(list))
	for _, f := range list {
		disk[f.Path] = struct{}{}

		if s, ok := stamps[f.Path]; ok && s == (Stamp{ModifiedMs: f.ModifiedMs, Size: f.Size}) {
			continue
		}

		data, err := files.Read(f.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, f, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", f.Path))
		if cb != nil {
			cb(EventIndexed, f.Path)
		}
	}

	// Remove stale entries.
	for p := range stamps {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteFile(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("path", p))
		if cb != nil {
			cb(EventRemoved, p)
		}
	}

	return nil
}

// indexFile extracts searchable text from data and upserts it. The title
// is the file name, as on the canvas.
func indexFile(db *DB, f models.VaultFile, data []byte) error {
	row := FileRow{
		Path:       f.Path,
		Title:      models.StripExt(f.Name),
		Kind:       f.Kind,
		Checksum:   checksum.Sum(data),
		Size:       f.Size,
		ModifiedMs: f.ModifiedMs,
	}

	if f.Kind == models.KindDrawing {
		return db.UpsertFile(row, scene.Text(data), nil)
	}

	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	row.Tags = res.Tags
	return db.UpsertFile(row, res.Body, res.Links)
}
