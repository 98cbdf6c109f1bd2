// Package models defines the domain types for Mural.
package models

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"
)

// Kind is the note variant. It is always derived from a file extension.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindDrawing  Kind = "drawing"
)

// Canonical extensions used when creating files.
const (
	ExtMarkdown = ".md"
	ExtDrawing  = ".excalidraw"
)

// recognized maps every extension the vault lists to its variant.
var recognized = map[string]Kind{
	".md":         KindMarkdown,
	".markdown":   KindMarkdown,
	".excalidraw": KindDrawing,
	".drawing":    KindDrawing,
}

// Extension returns the canonical extension for k.
func (k Kind) Extension() string {
	if k == KindDrawing {
		return ExtDrawing
	}
	return ExtMarkdown
}

// Valid reports whether k is a known variant.
func (k Kind) Valid() bool {
	return k == KindMarkdown || k == KindDrawing
}

// RecognizedExt returns the recognized extension name ends with, in its
// original case, or "".
func RecognizedExt(name string) string {
	ext := filepath.Ext(name)
	if _, ok := recognized[strings.ToLower(ext)]; ok {
		return ext
	}
	return ""
}

// KindOf derives the variant from path's extension.
func KindOf(path string) (Kind, bool) {
	k, ok := recognized[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// StripExt removes one trailing recognized extension from name.
func StripExt(name string) string {
	if ext := RecognizedExt(name); ext != "" {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

// BaseName normalizes a stored file reference, absolute or vault-relative,
// to its file name.
func BaseName(path string) string {
	return filepath.Base(filepath.FromSlash(strings.ReplaceAll(path, "\\", "/")))
}

// Note is a placement of a vault file on a canvas.
type Note struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"type"`
	WorldX   float64 `json:"-"`
	WorldY   float64 `json:"-"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Title    string  `json:"title,omitempty"`
	Color    string  `json:"color,omitempty"`
	FilePath string  `json:"filePath,omitempty"`
	CanvasID string  `json:"canvasId,omitempty"`

	// Content is the markdown buffer; the first line is the display title.
	Content string `json:"content,omitempty"`
	// Scene is the opaque drawing document.
	Scene json.RawMessage `json:"sceneData,omitempty"`

	// SavedChecksum is the checksum of the payload last confirmed on disk.
	SavedChecksum string `json:"savedChecksum,omitempty"`
}

// noteJSON is the persisted shape: world coordinates are stored as x/y.
type noteJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	noteAlias
}

type noteAlias Note

// MarshalJSON writes WorldX/WorldY as x/y.
func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(noteJSON{X: n.WorldX, Y: n.WorldY, noteAlias: noteAlias(n)})
}

// UnmarshalJSON reads x/y into WorldX/WorldY.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Note(raw.noteAlias)
	n.WorldX, n.WorldY = raw.X, raw.Y
	return nil
}

// Payload returns the bytes that back the note on disk.
func (n *Note) Payload() []byte {
	if n.Kind == KindDrawing {
		return []byte(n.Scene)
	}
	return []byte(n.Content)
}

// SetPayload replaces the live buffer with data read from disk.
func (n *Note) SetPayload(data []byte) {
	if n.Kind == KindDrawing {
		n.Scene = json.RawMessage(append([]byte(nil), data...))
		n.Content = ""
		return
	}
	n.Content = string(data)
	n.Scene = nil
}

// Retarget points the note at a new file and re-derives its variant and
// title from the file name.
func (n *Note) Retarget(path string) {
	n.FilePath = path
	if k, ok := KindOf(path); ok {
		n.Kind = k
	}
	n.Title = StripExt(BaseName(path))
}

// Clone returns a deep copy.
func (n Note) Clone() Note {
	if n.Scene != nil {
		n.Scene = append(json.RawMessage(nil), n.Scene...)
	}
	return n
}

// VaultFile is one entry of a vault directory listing.
type VaultFile struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Kind       Kind   `json:"type"`
	ModifiedMs int64  `json:"modifiedTimeMs"`
	Size       int64  `json:"sizeBytes"`
}

// ModTime returns ModifiedMs as a time.
func (f VaultFile) ModTime() time.Time {
	return time.UnixMilli(f.ModifiedMs)
}
