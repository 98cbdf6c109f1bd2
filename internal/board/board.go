// Package board is the orchestrator between the rendering shell and the
// vault. It owns the notes of the active canvas, routes edits through the
// autosave coordinator, keeps the canvas state document in step with the
// in-memory layout, and propagates file renames and deletions to every
// canvas that references the affected file.
package board

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/autosave"
	"github.com/starford/mural/internal/canvasstate"
	"github.com/starford/mural/internal/checksum"
	"github.com/starford/mural/internal/geometry"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/storage"
)

// Event kinds delivered to listeners.
const (
	EventVaultChanged   = "vault.changed"
	EventVaultSwitched  = "vault.switched"
	EventNoteRenamed    = "note.renamed"
	EventNoteRemoved    = "note.removed"
	EventCanvasSwitched = "canvas.switched"
)

// Event describes a change the shell should re-render for.
type Event struct {
	Kind    string             `json:"kind"`
	Canvas  string             `json:"canvas,omitempty"`
	Path    string             `json:"path,omitempty"`
	OldPath string             `json:"oldPath,omitempty"`
	NoteIDs []string           `json:"noteIds,omitempty"`
	Files   []models.VaultFile `json:"files,omitempty"`
}

// VaultSwitcher persists a new vault location.
type VaultSwitcher interface {
	SetVaultPath(dir string) (string, error)
}

// View is a snapshot of the active canvas.
type View struct {
	Canvas string          `json:"canvas"`
	Loaded bool            `json:"loaded"`
	Camera geometry.Camera `json:"camera"`
	Notes  []models.Note   `json:"notes"`
}

// Board serializes every UI operation behind one mutex. File I/O for note
// content happens on autosave goroutines and never under this lock, except
// for explicit flushes.
type Board struct {
	files  storage.Provider
	store  *canvasstate.Store
	saves  *autosave.Coordinator
	vaults VaultSwitcher
	logger *slog.Logger

	mu     sync.Mutex
	canvas string
	loaded bool
	camera geometry.Camera
	notes  []models.Note
	queued []Event

	lmu       sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// New creates a board. Open must be called before use.
func New(files storage.Provider, store *canvasstate.Store, saves *autosave.Coordinator, vaults VaultSwitcher, logger *slog.Logger) *Board {
	return &Board{
		files:     files,
		store:     store,
		saves:     saves,
		vaults:    vaults,
		logger:    logger,
		camera:    geometry.Camera{Zoom: geometry.DefaultZoom},
		listeners: make(map[int]func(Event)),
	}
}

// Subscribe registers fn for board events and returns a function removing
// it. Events are delivered after the board lock is released, in order.
func (b *Board) Subscribe(fn func(Event)) func() {
	b.lmu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.lmu.Unlock()
	return func() {
		b.lmu.Lock()
		delete(b.listeners, id)
		b.lmu.Unlock()
	}
}

// emitLocked queues e for delivery once the board lock is released.
func (b *Board) emitLocked(e Event) {
	b.queued = append(b.queued, e)
}

// unlock releases the board lock and then delivers queued events.
func (b *Board) unlock() {
	events := b.queued
	b.queued = nil
	b.mu.Unlock()
	if len(events) == 0 {
		return
	}

	b.lmu.Lock()
	fns := make([]func(Event), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.lmu.Unlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

// Open loads the canvas recorded as current in the vault's state document.
func (b *Board) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.unlock()
	id, err := b.store.LoadCurrentCanvas()
	if err != nil {
		return err
	}
	return b.loadCanvasLocked(ctx, id)
}

// View returns a copy of the active canvas.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	notes := make([]models.Note, len(b.notes))
	for i, n := range b.notes {
		notes[i] = n.Clone()
	}
	return View{Canvas: b.canvas, Loaded: b.loaded, Camera: b.camera, Notes: notes}
}

// Note returns a copy of one note on the active canvas.
func (b *Board) Note(id string) (models.Note, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.findLocked(id)
	if err != nil {
		return models.Note{}, err
	}
	return n.Clone(), nil
}

func (b *Board) findLocked(id string) (*models.Note, error) {
	for i := range b.notes {
		if b.notes[i].ID == id {
			return &b.notes[i], nil
		}
	}
	return nil, apperr.New(apperr.ErrNotFound, "board: note", id)
}

// snapshotLocked returns the notes of the active canvas stamped with the
// checksum of the content last confirmed on disk.
func (b *Board) snapshotLocked() []models.Note {
	out := make([]models.Note, len(b.notes))
	for i, n := range b.notes {
		out[i] = n.Clone()
		sum := b.saves.Confirmed(n.ID)
		switch {
		case sum == "":
		case sum == checksum.Sum(n.Payload()):
			out[i].SavedChecksum = payloadSum(n.Kind, n.Payload())
		default:
			out[i].SavedChecksum = sum
		}
	}
	return out
}

// persistLocked writes the active canvas layout to the state store. The
// store buffers and debounces the document write.
func (b *Board) persistLocked() error {
	if !b.loaded {
		return nil
	}
	return b.store.SaveCanvas(b.canvas, models.CanvasState{
		Notes: b.snapshotLocked(),
		Pan:   models.Pan{X: b.camera.PanX, Y: b.camera.PanY},
		Zoom:  b.camera.Zoom,
	})
}

// livePayloadsLocked maps every file-backed note of the active canvas to
// its current content.
func (b *Board) livePayloadsLocked() map[string]autosave.Payload {
	live := make(map[string]autosave.Payload, len(b.notes))
	for _, n := range b.notes {
		if n.FilePath == "" {
			continue
		}
		live[n.ID] = autosave.Payload{Path: n.FilePath, Data: n.Payload()}
	}
	return live
}

// Close flushes every note of the active canvas, persists the layout and
// writes the state document synchronously.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.unlock()

	var errs []error
	if b.loaded {
		if err := b.saves.FlushAll(ctx, b.livePayloadsLocked()); err != nil {
			errs = append(errs, err)
		}
		if err := b.persistLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.store.ForceSave(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
