package board

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/checksum"
	"github.com/starford/mural/internal/geometry"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/scene"
)

// reloadWorkers bounds concurrent file reads while a canvas loads.
const reloadWorkers = 8

// SwitchCanvas makes id the active canvas. The previous canvas is flushed
// and persisted first; in between the board is empty and not loaded.
func (b *Board) SwitchCanvas(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.unlock()
	if id == "" {
		return apperr.New(apperr.ErrInvalidName, "board: switch canvas", id)
	}
	if b.loaded && id == b.canvas {
		return nil
	}
	return b.loadCanvasLocked(ctx, id)
}

// leaveCanvasLocked persists the active canvas, if it finished loading,
// and clears the in-memory notes.
func (b *Board) leaveCanvasLocked(ctx context.Context) {
	if b.loaded {
		live := b.livePayloadsLocked()
		if err := b.saves.FlushAll(ctx, live); err != nil {
			b.logger.Warn("board: flush before canvas switch failed",
				slog.String("canvas", b.canvas), slog.String("error", err.Error()))
		}
		if err := b.persistLocked(); err != nil {
			b.logger.Warn("board: save canvas failed",
				slog.String("canvas", b.canvas), slog.String("error", err.Error()))
		}
		for id := range live {
			if err := b.saves.Forget(ctx, id); err != nil {
				b.logger.Warn("board: release note failed",
					slog.String("note", id), slog.String("error", err.Error()))
			}
		}
	}
	b.notes = nil
	b.loaded = false
}

func (b *Board) loadCanvasLocked(ctx context.Context, id string) error {
	b.leaveCanvasLocked(ctx)

	b.canvas = id
	if err := b.store.SaveCurrentCanvas(id); err != nil {
		return err
	}

	zoom, ok, err := b.store.LoadZoom(id)
	if err != nil {
		return err
	}
	if !ok {
		zoom = geometry.DefaultZoom
	}
	pan, err := b.store.LoadPan(id)
	if err != nil {
		return err
	}
	notes, err := b.store.LoadNotes(id)
	if err != nil {
		return err
	}

	requeue := b.reload(ctx, notes)

	b.camera = geometry.Camera{PanX: pan.X, PanY: pan.Y, Zoom: geometry.ClampZoom(zoom)}
	b.notes = notes
	b.loaded = true
	for i, n := range notes {
		switch {
		case n.FilePath == "":
		case requeue[i]:
			b.saves.RequestSave(n.ID, n.FilePath, n.Payload())
		case n.SavedChecksum != "":
			b.saves.Track(n.ID, n.FilePath, n.Payload())
		}
	}

	b.logger.Info("board: canvas loaded", slog.String("canvas", id), slog.Int("notes", len(notes)))
	b.emitLocked(Event{Kind: EventCanvasSwitched, Canvas: id})
	return nil
}

// reload refreshes each file-backed note from disk in place and reports
// which notes kept their snapshot content and need it written back.
func (b *Board) reload(ctx context.Context, notes []models.Note) []bool {
	requeue := make([]bool, len(notes))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(reloadWorkers)
	for i := range notes {
		if notes[i].FilePath == "" {
			continue
		}
		g.Go(func() error {
			requeue[i] = b.refresh(&notes[i])
			return nil
		})
	}
	_ = g.Wait()
	return requeue
}

// refresh replaces n's content with its file's content. The snapshot
// content is kept when the read fails, and when the file is empty while
// the snapshot holds content that was never confirmed on disk; the latter
// case returns true so the content is written back.
func (b *Board) refresh(n *models.Note) bool {
	n.Retarget(n.FilePath)
	snapshot := n.Payload()

	data, err := b.files.Read(n.FilePath)
	if err != nil {
		b.logger.Warn("board: read note failed, keeping saved content",
			slog.String("path", n.FilePath), slog.String("error", err.Error()))
		n.SavedChecksum = ""
		return false
	}
	if len(data) == 0 && len(snapshot) > 0 && payloadSum(n.Kind, snapshot) != n.SavedChecksum {
		b.logger.Warn("board: note file empty, restoring unsaved content", slog.String("path", n.FilePath))
		n.SavedChecksum = ""
		return true
	}
	if n.Kind == models.KindDrawing && len(data) > 0 {
		if err := scene.Validate(data); err != nil {
			b.logger.Warn("board: drawing file malformed, keeping saved content",
				slog.String("path", n.FilePath), slog.String("error", err.Error()))
			n.SavedChecksum = ""
			return false
		}
	}
	n.SetPayload(data)
	n.SavedChecksum = payloadSum(n.Kind, data)
	return false
}

// payloadSum is the checksum a snapshot stores for data. Drawing scenes
// are re-indented when the state document is written, so they are summed
// in compact form.
func payloadSum(kind models.Kind, data []byte) string {
	if kind == models.KindDrawing {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err == nil {
			return checksum.Sum(buf.Bytes())
		}
	}
	return checksum.Sum(data)
}

// Canvases returns the canvas names, default canvas first.
func (b *Board) Canvases() ([]string, error) {
	return b.store.LoadCanvasList()
}

func canvasName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.New(apperr.ErrInvalidName, "board: canvas name", name)
	}
	return name, nil
}

// CreateCanvas appends a new empty canvas to the list.
func (b *Board) CreateCanvas(name string) (string, error) {
	name, err := canvasName(name)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.unlock()
	list, err := b.store.LoadCanvasList()
	if err != nil {
		return "", err
	}
	for _, c := range list {
		if c == name {
			return "", apperr.New(apperr.ErrAlreadyExists, "board: create canvas", name)
		}
	}
	return name, b.store.SaveCanvasList(append(list, name))
}

// RenameCanvas renames a canvas and keeps its layout. The default canvas
// cannot be renamed.
func (b *Board) RenameCanvas(oldName, newName string) error {
	newName, err := canvasName(newName)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.unlock()
	if b.loaded && b.canvas == oldName {
		if err := b.persistLocked(); err != nil {
			return err
		}
	}
	if err := b.store.RenameCanvas(oldName, newName); err != nil {
		return err
	}
	if b.canvas == oldName {
		b.canvas = newName
		for i := range b.notes {
			b.notes[i].CanvasID = newName
		}
		b.emitLocked(Event{Kind: EventCanvasSwitched, Canvas: newName})
	}
	return nil
}

// DeleteCanvas removes a canvas and its layout; note files are kept.
// Deleting the active canvas switches to the default canvas.
func (b *Board) DeleteCanvas(ctx context.Context, name string) error {
	if name == models.DefaultCanvas {
		return apperr.New(apperr.ErrInvalidName, "board: delete default canvas", name)
	}
	b.mu.Lock()
	defer b.unlock()
	list, err := b.store.LoadCanvasList()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(list))
	found := false
	for _, c := range list {
		if c == name {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return apperr.New(apperr.ErrNotFound, "board: delete canvas", name)
	}
	if b.canvas == name {
		if err := b.loadCanvasLocked(ctx, models.DefaultCanvas); err != nil {
			return err
		}
	}
	return b.store.SaveCanvasList(kept)
}

// SwitchVault points the application at dir. The current canvas is
// flushed and saved into the old vault before the switch.
func (b *Board) SwitchVault(ctx context.Context, dir string) (string, error) {
	b.mu.Lock()
	defer b.unlock()

	b.leaveCanvasLocked(ctx)
	if err := b.store.ForceSave(); err != nil {
		b.logger.Warn("board: save state before vault switch failed", slog.String("error", err.Error()))
	}
	root, err := b.vaults.SetVaultPath(dir)
	if err != nil {
		if lerr := b.loadCanvasLocked(ctx, b.canvas); lerr != nil {
			b.logger.Warn("board: reopen canvas failed", slog.String("error", lerr.Error()))
		}
		return "", err
	}
	if err := b.store.Reset(); err != nil {
		b.logger.Warn("board: reset state failed", slog.String("error", err.Error()))
	}

	b.emitLocked(Event{Kind: EventVaultSwitched, Path: root})
	id, err := b.store.LoadCurrentCanvas()
	if err != nil {
		return root, err
	}
	return root, b.loadCanvasLocked(ctx, id)
}

// Pan shifts the camera by a screen-space delta.
func (b *Board) Pan(dx, dy float64) (geometry.Camera, error) {
	b.mu.Lock()
	defer b.unlock()
	b.camera = geometry.PanBy(b.camera, dx, dy)
	return b.camera, b.store.SavePan(models.Pan{X: b.camera.PanX, Y: b.camera.PanY}, b.canvas)
}

// ZoomAt changes the zoom, clamped, keeping the world point under pointer
// fixed on screen.
func (b *Board) ZoomAt(pointer, viewport geometry.Point, zoom float64) (geometry.Camera, error) {
	b.mu.Lock()
	defer b.unlock()
	b.camera = geometry.ZoomAt(pointer, viewport, b.camera, zoom)
	if err := b.store.SavePan(models.Pan{X: b.camera.PanX, Y: b.camera.PanY}, b.canvas); err != nil {
		return b.camera, err
	}
	return b.camera, b.store.SaveZoom(b.camera.Zoom, b.canvas)
}
