// Package canvasstate persists the application state that is not itself a
// note file: the canvas list, the active canvas, and each canvas's camera
// and note layout. The state lives in one JSON document inside the vault
// so that it travels with it.
package canvasstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/storage"
)

// Location of the state document relative to the vault root.
const (
	StateDir  = ".mural"
	StateFile = "canvas-state.json"
)

// Document is the on-disk shape of the canvas state.
type Document struct {
	CurrentCanvas string                        `json:"currentCanvas"`
	Canvases      []string                      `json:"canvases"`
	States        map[string]models.CanvasState `json:"states"`
}

// Roots locates the vault directory.
type Roots interface {
	Root() (string, error)
}

// Store buffers the state document in memory and writes it behind a short
// debounce. ForceSave writes synchronously.
type Store struct {
	roots    Roots
	logger   *slog.Logger
	debounce time.Duration

	mu    sync.Mutex
	doc   *Document
	root  string // vault the document was loaded from
	dirty bool
	timer *time.Timer
}

// New creates a store for the vault located by roots.
func New(roots Roots, logger *slog.Logger, debounce time.Duration) *Store {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Store{roots: roots, logger: logger, debounce: debounce}
}

// Path returns the state document location for the vault at root.
func Path(root string) string {
	return filepath.Join(root, StateDir, StateFile)
}

// loadLocked makes s.doc the document of the current vault. A vault switch
// first writes out any unsaved changes of the previous vault.
func (s *Store) loadLocked() error {
	root, err := s.roots.Root()
	if err != nil {
		return err
	}
	if s.doc != nil && s.root == root {
		return nil
	}
	if s.doc != nil && s.dirty {
		if err := s.writeLocked(); err != nil {
			s.logger.Warn("canvasstate: save before vault switch failed", slog.String("error", err.Error()))
		}
	}

	doc, err := s.read(root)
	if err != nil {
		return err
	}
	s.doc, s.root, s.dirty = doc, root, false
	return nil
}

func (s *Store) read(root string) (*Document, error) {
	path := Path(root)
	doc := &Document{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, apperr.IO("canvasstate: read", path, err)
	case len(data) > 0:
		if err := json.Unmarshal(data, doc); err != nil {
			// Keep the broken document for inspection and start over
			// rather than refusing to open the vault.
			aside := path + ".corrupt"
			_ = os.Rename(path, aside)
			s.logger.Error("canvasstate: malformed state document moved aside",
				slog.String("path", aside), slog.String("error", err.Error()))
			doc = &Document{}
		}
	}
	doc.Canvases = models.NormalizeCanvasList(doc.Canvases)
	if doc.States == nil {
		doc.States = make(map[string]models.CanvasState)
	}
	if !contains(doc.Canvases, doc.CurrentCanvas) {
		doc.CurrentCanvas = models.DefaultCanvas
	}
	return doc, nil
}

func (s *Store) writeLocked() error {
	if s.doc == nil {
		return nil
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("canvasstate: encode: %w", err)
	}
	if err := storage.WriteAtomic(Path(s.root), data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// markDirtyLocked schedules a debounced write.
func (s *Store) markDirtyLocked() {
	s.dirty = true
	if s.timer != nil {
		s.timer.Reset(s.debounce)
		return
	}
	s.timer = time.AfterFunc(s.debounce, s.flushFromTimer)
}

func (s *Store) flushFromTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	if err := s.writeLocked(); err != nil {
		s.logger.Warn("canvasstate: background save failed", slog.String("error", err.Error()))
	}
}

// ForceSave writes buffered state immediately.
func (s *Store) ForceSave() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	if !s.dirty {
		return nil
	}
	return s.writeLocked()
}

// Reset drops the buffered document after saving it, so the next call
// reloads from the vault currently resolved.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.dirty {
		err = s.writeLocked()
	}
	s.doc, s.root, s.dirty = nil, "", false
	return err
}

// LoadCanvasList returns the canvas names, default canvas first.
func (s *Store) LoadCanvasList() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return append([]string(nil), s.doc.Canvases...), nil
}

// SaveCanvasList stores names after normalizing them. State of canvases
// dropped from the list is discarded.
func (s *Store) SaveCanvasList(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	s.doc.Canvases = models.NormalizeCanvasList(names)
	for id := range s.doc.States {
		if !contains(s.doc.Canvases, id) {
			delete(s.doc.States, id)
		}
	}
	if !contains(s.doc.Canvases, s.doc.CurrentCanvas) {
		s.doc.CurrentCanvas = models.DefaultCanvas
	}
	s.markDirtyLocked()
	return nil
}

// LoadCurrentCanvas returns the active canvas id.
func (s *Store) LoadCurrentCanvas() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return "", err
	}
	return s.doc.CurrentCanvas, nil
}

// SaveCurrentCanvas stores id as the active canvas. Unknown ids are added
// to the canvas list.
func (s *Store) SaveCurrentCanvas(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if id == "" {
		id = models.DefaultCanvas
	}
	if !contains(s.doc.Canvases, id) {
		s.doc.Canvases = models.NormalizeCanvasList(append(s.doc.Canvases, id))
	}
	s.doc.CurrentCanvas = id
	s.markDirtyLocked()
	return nil
}

// LoadZoom returns the stored zoom of a canvas and whether one was stored.
func (s *Store) LoadZoom(canvasID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return 0, false, err
	}
	st, ok := s.doc.States[canvasID]
	if !ok || st.Zoom <= 0 {
		return 0, false, nil
	}
	return st.Zoom, true, nil
}

// SaveZoom stores the zoom of a canvas.
func (s *Store) SaveZoom(zoom float64, canvasID string) error {
	return s.update(canvasID, func(st *models.CanvasState) { st.Zoom = zoom })
}

// LoadPan returns the stored pan of a canvas.
func (s *Store) LoadPan(canvasID string) (models.Pan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return models.Pan{}, err
	}
	return s.doc.States[canvasID].Pan, nil
}

// SavePan stores the pan of a canvas.
func (s *Store) SavePan(pan models.Pan, canvasID string) error {
	return s.update(canvasID, func(st *models.CanvasState) { st.Pan = pan })
}

// LoadNotes returns a copy of the notes stored for a canvas.
func (s *Store) LoadNotes(canvasID string) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return cloneNotes(s.doc.States[canvasID].Notes), nil
}

// SaveNotes stores a copy of notes for a canvas.
func (s *Store) SaveNotes(notes []models.Note, canvasID string) error {
	cp := cloneNotes(notes)
	return s.update(canvasID, func(st *models.CanvasState) { st.Notes = cp })
}

// SaveCanvas stores notes, pan and zoom of a canvas in one step.
func (s *Store) SaveCanvas(canvasID string, state models.CanvasState) error {
	state.Notes = cloneNotes(state.Notes)
	return s.update(canvasID, func(st *models.CanvasState) { *st = state })
}

// RenameCanvas moves the state and list entry of oldID to newID.
func (s *Store) RenameCanvas(oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if oldID == models.DefaultCanvas || newID == "" {
		return apperr.New(apperr.ErrInvalidName, "canvasstate: rename canvas", oldID)
	}
	if !contains(s.doc.Canvases, oldID) {
		return apperr.New(apperr.ErrNotFound, "canvasstate: rename canvas", oldID)
	}
	if contains(s.doc.Canvases, newID) {
		return apperr.New(apperr.ErrAlreadyExists, "canvasstate: rename canvas", newID)
	}
	for i, id := range s.doc.Canvases {
		if id == oldID {
			s.doc.Canvases[i] = newID
		}
	}
	if st, ok := s.doc.States[oldID]; ok {
		for i := range st.Notes {
			st.Notes[i].CanvasID = newID
		}
		s.doc.States[newID] = st
		delete(s.doc.States, oldID)
	}
	if s.doc.CurrentCanvas == oldID {
		s.doc.CurrentCanvas = newID
	}
	s.markDirtyLocked()
	return nil
}

// UpdateAllNotes calls fn with the notes of every stored canvas and keeps
// the returned slice when changed is true.
func (s *Store) UpdateAllNotes(fn func(canvasID string, notes []models.Note) ([]models.Note, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	touched := false
	for id, st := range s.doc.States {
		notes, changed := fn(id, st.Notes)
		if !changed {
			continue
		}
		st.Notes = notes
		s.doc.States[id] = st
		touched = true
	}
	if touched {
		s.markDirtyLocked()
	}
	return nil
}

// Close stops the debounce timer and writes any buffered state.
func (s *Store) Close() error {
	return s.ForceSave()
}

func (s *Store) update(canvasID string, fn func(*models.CanvasState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if canvasID == "" {
		canvasID = models.DefaultCanvas
	}
	st := s.doc.States[canvasID]
	fn(&st)
	s.doc.States[canvasID] = st
	if !contains(s.doc.Canvases, canvasID) {
		s.doc.Canvases = models.NormalizeCanvasList(append(s.doc.Canvases, canvasID))
	}
	s.markDirtyLocked()
	return nil
}

func cloneNotes(in []models.Note) []models.Note {
	if in == nil {
		return nil
	}
	out := make([]models.Note, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
