package board

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/geometry"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/scene"
)

// Default and minimum note dimensions in world units.
const (
	DefaultNoteWidth     = 320
	DefaultNoteHeight    = 240
	DefaultDrawingWidth  = 480
	DefaultDrawingHeight = 360
	MinNoteSize          = 40
)

func newNote(canvas, path string, at geometry.Point, data []byte) models.Note {
	at = geometry.ClampWorld(at)
	n := models.Note{
		ID:       uuid.NewString(),
		WorldX:   at.X,
		WorldY:   at.Y,
		CanvasID: canvas,
	}
	n.Retarget(path)
	n.SetPayload(data)
	n.Width, n.Height = DefaultNoteWidth, DefaultNoteHeight
	if n.Kind == models.KindDrawing {
		n.Width, n.Height = DefaultDrawingWidth, DefaultDrawingHeight
	}
	return n
}

// CreateNote creates a vault file named name and places it on the active
// canvas at the world position at.
func (b *Board) CreateNote(name string, kind models.Kind, at geometry.Point) (models.Note, error) {
	b.mu.Lock()
	defer b.unlock()
	if !b.loaded {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "board: create note: no canvas loaded", b.canvas)
	}
	path, err := b.files.Create(name, kind)
	if err != nil {
		return models.Note{}, err
	}
	data, err := b.files.Read(path)
	if err != nil {
		return models.Note{}, err
	}
	return b.placeLocked(path, at, data)
}

// AddExistingFile places an existing vault file on the active canvas.
func (b *Board) AddExistingFile(path string, at geometry.Point) (models.Note, error) {
	b.mu.Lock()
	defer b.unlock()
	if !b.loaded {
		return models.Note{}, apperr.New(apperr.ErrNotFound, "board: add file: no canvas loaded", b.canvas)
	}
	kind, ok := models.KindOf(path)
	if !ok {
		return models.Note{}, apperr.New(apperr.ErrInvalidName, "board: add file: unsupported file type", path)
	}
	data, err := b.files.Read(path)
	if err != nil {
		return models.Note{}, err
	}
	if kind == models.KindDrawing {
		if err := scene.Validate(data); err != nil {
			return models.Note{}, err
		}
	}
	return b.placeLocked(path, at, data)
}

func (b *Board) placeLocked(path string, at geometry.Point, data []byte) (models.Note, error) {
	n := newNote(b.canvas, path, at, data)
	b.saves.Track(n.ID, n.FilePath, data)
	b.notes = append(b.notes, n)
	if err := b.persistLocked(); err != nil {
		return n.Clone(), err
	}
	return n.Clone(), nil
}

// EditMarkdown replaces a markdown note's content and queues it for
// saving.
func (b *Board) EditMarkdown(id, content string) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	if n.Kind != models.KindMarkdown {
		return apperr.New(apperr.ErrMalformedData, "board: edit: not a markdown note", n.FilePath)
	}
	n.Content = content
	if n.FilePath != "" {
		b.saves.RequestSave(n.ID, n.FilePath, []byte(content))
	}
	return b.persistLocked()
}

// EditScene replaces a drawing note's scene and queues it for saving.
// Malformed scenes are rejected before anything changes.
func (b *Board) EditScene(id string, data []byte) error {
	normalized, err := scene.Normalize(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	if n.Kind != models.KindDrawing {
		return apperr.New(apperr.ErrMalformedData, "board: edit: not a drawing note", n.FilePath)
	}
	n.SetPayload(normalized)
	if n.FilePath != "" {
		b.saves.RequestSave(n.ID, n.FilePath, normalized)
	}
	return b.persistLocked()
}

// FlushNote forces a note's live content to disk, e.g. when its editor
// closes.
func (b *Board) FlushNote(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	if n.FilePath == "" {
		return nil
	}
	if err := b.saves.Flush(ctx, n.ID, n.FilePath, n.Payload()); err != nil {
		return err
	}
	return b.persistLocked()
}

// Move places a note at a new world position.
func (b *Board) Move(id string, to geometry.Point) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	to = geometry.ClampWorld(to)
	n.WorldX, n.WorldY = to.X, to.Y
	return b.persistLocked()
}

// Resize changes a note's size, keeping it at least MinNoteSize.
func (b *Board) Resize(id string, width, height float64) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	n.Width, n.Height = max(width, MinNoteSize), max(height, MinNoteSize)
	return b.persistLocked()
}

// Recolor sets a note's color; an empty color resets it.
func (b *Board) Recolor(id, color string) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	n.Color = color
	return b.persistLocked()
}

// RemoveFromCanvas takes a note off the active canvas. Its file stays in
// the vault with the note's latest content.
func (b *Board) RemoveFromCanvas(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return err
	}
	if n.FilePath != "" {
		if err := b.saves.Flush(ctx, n.ID, n.FilePath, n.Payload()); err != nil {
			return err
		}
		if err := b.saves.Forget(ctx, n.ID); err != nil {
			return err
		}
	}
	b.notes = removeNotes(b.notes, func(m models.Note) bool { return m.ID == id })
	b.emitLocked(Event{Kind: EventNoteRemoved, Canvas: b.canvas, NoteIDs: []string{id}})
	return b.persistLocked()
}

// removeNotes filters notes in place, dropping those drop matches.
func removeNotes(notes []models.Note, drop func(models.Note) bool) []models.Note {
	out := notes[:0]
	for _, n := range notes {
		if !drop(n) {
			out = append(out, n)
		}
	}
	return out
}
