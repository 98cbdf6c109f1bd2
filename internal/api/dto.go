package api

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mural/internal/models"
)

var noteTypes = []any{models.KindMarkdown, models.KindDrawing}

// CreateNoteRequest creates a file and places it on the active canvas.
type CreateNoteRequest struct {
	Name string      `json:"name"`
	Type models.Kind `json:"type"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
}

// Validate validates the request.
func (r *CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(noteTypes...)),
	)
}

// PlaceFileRequest places an existing vault file on the active canvas.
type PlaceFileRequest struct {
	Path string  `json:"path"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Validate validates the request.
func (r *PlaceFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}

// CreateFileRequest creates a vault file without placing it.
type CreateFileRequest struct {
	Name    string          `json:"name"`
	Type    models.Kind     `json:"type"`
	Content string          `json:"content,omitempty"`
	Scene   json.RawMessage `json:"sceneData,omitempty"`
}

// Validate validates the request.
func (r *CreateFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(noteTypes...)),
	)
}

// RenameRequest renames a file or canvas.
type RenameRequest struct {
	Name string `json:"name"`
}

// Validate validates the request.
func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// RenameFileRequest renames a vault file by path.
type RenameFileRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Validate validates the request.
func (r *RenameFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
		validation.Field(&r.Name, validation.Required),
	)
}

// ContentRequest carries an editor commit: markdown text or a drawing
// scene.
type ContentRequest struct {
	Content *string         `json:"content,omitempty"`
	Scene   json.RawMessage `json:"sceneData,omitempty"`
}

// Validate validates the request.
func (r *ContentRequest) Validate() error {
	if (r.Content == nil) == (len(r.Scene) == 0) {
		return errors.New("exactly one of content or sceneData is required")
	}
	return nil
}

// PositionRequest moves a note in world space.
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Validate validates the request.
func (r *PositionRequest) Validate() error { return nil }

// SizeRequest resizes a note.
type SizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate validates the request.
func (r *SizeRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Width, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&r.Height, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// ColorRequest recolors a note; an empty color resets it.
type ColorRequest struct {
	Color string `json:"color"`
}

// Validate validates the request.
func (r *ColorRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Color, validation.Length(0, 64)),
	)
}

// PanRequest shifts the camera by a screen-space delta.
type PanRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Validate validates the request.
func (r *PanRequest) Validate() error { return nil }

// ZoomRequest zooms around a pointer position. Positions are absolute
// screen coordinates; the viewport is the canvas element's top-left
// corner.
type ZoomRequest struct {
	PointerX  float64 `json:"pointerX"`
	PointerY  float64 `json:"pointerY"`
	ViewportX float64 `json:"viewportX"`
	ViewportY float64 `json:"viewportY"`
	Zoom      float64 `json:"zoom"`
}

// Validate validates the request.
func (r *ZoomRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Zoom, validation.Required, validation.Min(0.0).Exclusive()),
	)
}

// CanvasRequest names a canvas.
type CanvasRequest struct {
	Name string `json:"name"`
}

// Validate validates the request.
func (r *CanvasRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required),
	)
}

// VaultRequest selects a new vault directory.
type VaultRequest struct {
	Path string `json:"path"`
}

// Validate validates the request.
func (r *VaultRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path, validation.Required),
	)
}
