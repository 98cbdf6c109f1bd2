package board

import (
	"context"
	"log/slog"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/storage"
)

// sameFile compares note file references by file name only: one file may
// be referenced by an absolute path on one canvas and a relative path on
// another.
func sameFile(a, b string) bool {
	return a != "" && b != "" && models.BaseName(a) == models.BaseName(b)
}

// RenameNote renames the file behind a note. On success every note on
// every canvas that references the file is retargeted in place, keeping
// its position.
func (b *Board) RenameNote(ctx context.Context, id, newBase string) (models.Note, error) {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return models.Note{}, err
	}
	if n.FilePath == "" {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "board: rename: note has no file", id)
	}
	if _, err := b.renameLocked(ctx, n.FilePath, newBase); err != nil {
		return models.Note{}, err
	}
	n, err = b.findLocked(id)
	if err != nil {
		return models.Note{}, err
	}
	return n.Clone(), nil
}

// RenameFile renames a vault file and propagates the new path to notes.
func (b *Board) RenameFile(ctx context.Context, path, newBase string) (string, error) {
	b.mu.Lock()
	defer b.unlock()
	return b.renameLocked(ctx, path, newBase)
}

func (b *Board) renameLocked(ctx context.Context, oldPath, newBase string) (string, error) {
	// Nothing may be in flight for the old path when it moves.
	for _, n := range b.notes {
		if !sameFile(n.FilePath, oldPath) {
			continue
		}
		if err := b.saves.Flush(ctx, n.ID, n.FilePath, n.Payload()); err != nil {
			return "", err
		}
	}

	newPath, err := b.files.Rename(oldPath, newBase)
	if err != nil {
		return "", err
	}
	if newPath == oldPath {
		return newPath, nil
	}

	// Markdown files had their title line rewritten.
	var fresh []byte
	if kind, _ := models.KindOf(newPath); kind == models.KindMarkdown {
		if fresh, err = b.files.Read(newPath); err != nil {
			b.logger.Warn("board: reread renamed note failed",
				slog.String("path", newPath), slog.String("error", err.Error()))
			fresh = nil
		}
	}
	retarget := func(n *models.Note) {
		n.Retarget(newPath)
		if fresh != nil {
			n.SetPayload(fresh)
			n.SavedChecksum = payloadSum(n.Kind, fresh)
		}
	}

	var ids []string
	err = b.store.UpdateAllNotes(func(canvas string, notes []models.Note) ([]models.Note, bool) {
		changed := false
		for i := range notes {
			if sameFile(notes[i].FilePath, oldPath) {
				retarget(&notes[i])
				changed = true
			}
		}
		return notes, changed
	})
	if err != nil {
		b.logger.Warn("board: propagate rename failed",
			slog.String("path", oldPath), slog.String("error", err.Error()))
	}
	for i := range b.notes {
		n := &b.notes[i]
		if !sameFile(n.FilePath, oldPath) {
			continue
		}
		retarget(n)
		b.saves.Retarget(n.ID, newPath)
		if fresh != nil {
			b.saves.Track(n.ID, newPath, fresh)
		}
		ids = append(ids, n.ID)
	}

	b.logger.Info("board: file renamed", slog.String("from", oldPath), slog.String("to", newPath))
	b.emitLocked(Event{Kind: EventNoteRenamed, Canvas: b.canvas, OldPath: oldPath, Path: newPath, NoteIDs: ids})
	return newPath, b.persistLocked()
}

// DeleteNote deletes the file behind a note and removes every note that
// references it from every canvas.
func (b *Board) DeleteNote(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	if n.FilePath == "" {
		b.notes = removeNotes(b.notes, func(m models.Note) bool { return m.ID == id })
		b.emitLocked(Event{Kind: EventNoteRemoved, Canvas: b.canvas, NoteIDs: []string{id}})
		return b.persistLocked()
	}
	return b.deleteLocked(ctx, n.FilePath)
}

// DeleteFile deletes a vault file and removes the notes referencing it.
func (b *Board) DeleteFile(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.unlock()
	return b.deleteLocked(ctx, path)
}

func (b *Board) deleteLocked(ctx context.Context, path string) error {
	// A late write must not recreate the file.
	for _, n := range b.notes {
		if sameFile(n.FilePath, path) {
			if err := b.saves.Forget(ctx, n.ID); err != nil {
				return err
			}
		}
	}
	if err := b.files.Delete(path); err != nil {
		return err
	}
	return b.dropFileLocked(ctx, path)
}

// dropFileLocked removes every note referencing path from the active
// canvas and from every stored canvas.
func (b *Board) dropFileLocked(ctx context.Context, path string) error {
	err := b.store.UpdateAllNotes(func(canvas string, notes []models.Note) ([]models.Note, bool) {
		before := len(notes)
		notes = removeNotes(notes, func(n models.Note) bool { return sameFile(n.FilePath, path) })
		return notes, len(notes) != before
	})
	if err != nil {
		b.logger.Warn("board: propagate delete failed",
			slog.String("path", path), slog.String("error", err.Error()))
	}

	var ids []string
	for _, n := range b.notes {
		if sameFile(n.FilePath, path) {
			ids = append(ids, n.ID)
			if err := b.saves.Forget(ctx, n.ID); err != nil {
				b.logger.Warn("board: release note failed",
					slog.String("note", n.ID), slog.String("error", err.Error()))
			}
		}
	}
	b.notes = removeNotes(b.notes, func(n models.Note) bool { return sameFile(n.FilePath, path) })

	if len(ids) > 0 {
		b.emitLocked(Event{Kind: EventNoteRemoved, Canvas: b.canvas, Path: path, NoteIDs: ids})
	}
	return b.persistLocked()
}

// HandleListing applies a watcher listing: files reported removed that are
// still absent are dropped from every canvas, and the new listing is
// forwarded to listeners.
func (b *Board) HandleListing(ctx context.Context, l storage.Listing) {
	b.mu.Lock()
	defer b.unlock()

	if root, err := b.files.Root(); err != nil || root != l.Root {
		// Stale listing from a previous vault.
		return
	}
	for _, name := range l.Removed {
		// Listings are eventually consistent; the file may be back.
		if b.files.Exists(name) {
			continue
		}
		if err := b.dropFileLocked(ctx, name); err != nil {
			b.logger.Warn("board: drop removed file failed",
				slog.String("path", name), slog.String("error", err.Error()))
		}
	}
	b.emitLocked(Event{Kind: EventVaultChanged, Files: l.Files})
}
