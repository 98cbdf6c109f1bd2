package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-chi/chi/v5"

	"github.com/starford/mural/internal/board"
	"github.com/starford/mural/internal/geometry"
	"github.com/starford/mural/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	board *board.Board
	svc   *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(b *board.Board, svc *noteservice.Service) *Handler {
	return &Handler{board: b, svc: svc}
}

// filePath extracts the file path from the URL (everything after /files/).
// The result is always vault-relative.
func filePath(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimLeft(raw, "/")
}

func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// decode reads a JSON body into v and validates it. On failure it writes a
// 400 response and returns false.
func decode(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return false
	}
	return true
}

// State handles GET /state.
func (h *Handler) State(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.board.View())
}

// ListFiles handles GET /files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListFiles(r.Context())
	writeValue(w, r, http.StatusOK, map[string]any{"files": files}, err)
}

// GetFile handles GET /files/*.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.ReadFile(r.Context(), path)
	writeValue(w, r, http.StatusOK, d, err)
}

// CreateFile handles POST /files.
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if !decode(w, r, &req) {
		return
	}
	content := []byte(req.Content)
	if len(req.Scene) > 0 {
		content = req.Scene
	}
	d, err := h.svc.CreateFile(r.Context(), req.Name, req.Type, content)
	writeValue(w, r, http.StatusCreated, d, err)
}

// RenameFile handles POST /files/rename.
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req RenameFileRequest
	if !decode(w, r, &req) {
		return
	}
	newPath, err := h.board.RenameFile(r.Context(), req.Path, req.Name)
	writeResult(w, r, err, newPath, "renamed")
}

// DeleteFile handles DELETE /files/*.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	path := filePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	writeResult(w, r, h.board.DeleteFile(r.Context(), path), path, "deleted")
}

// Search handles GET /search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	writeValue(w, r, http.StatusOK, map[string]any{"results": results}, err)
}

// ListCanvases handles GET /canvases.
func (h *Handler) ListCanvases(w http.ResponseWriter, r *http.Request) {
	list, err := h.board.Canvases()
	writeValue(w, r, http.StatusOK, map[string]any{"canvases": list, "current": h.board.View().Canvas}, err)
}

// CreateCanvas handles POST /canvases.
func (h *Handler) CreateCanvas(w http.ResponseWriter, r *http.Request) {
	var req CanvasRequest
	if !decode(w, r, &req) {
		return
	}
	name, err := h.board.CreateCanvas(req.Name)
	writeResult(w, r, err, name, "created")
}

// OpenCanvas handles POST /canvases/{name}/open.
func (h *Handler) OpenCanvas(w http.ResponseWriter, r *http.Request) {
	if err := h.board.SwitchCanvas(r.Context(), urlParam(r, "name")); err != nil {
		writeResult(w, r, err, "", "")
		return
	}
	writeJSON(w, http.StatusOK, h.board.View())
}

// RenameCanvas handles PUT /canvases/{name}.
func (h *Handler) RenameCanvas(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, r, h.board.RenameCanvas(urlParam(r, "name"), req.Name), req.Name, "renamed")
}

// DeleteCanvas handles DELETE /canvases/{name}.
func (h *Handler) DeleteCanvas(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	writeResult(w, r, h.board.DeleteCanvas(r.Context(), name), name, "deleted")
}

// CreateNote handles POST /notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.board.CreateNote(req.Name, req.Type, geometry.Point{X: req.X, Y: req.Y})
	writeValue(w, r, http.StatusCreated, n, err)
}

// PlaceFile handles POST /notes/place.
func (h *Handler) PlaceFile(w http.ResponseWriter, r *http.Request) {
	var req PlaceFileRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.board.AddExistingFile(req.Path, geometry.Point{X: req.X, Y: req.Y})
	writeValue(w, r, http.StatusCreated, n, err)
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.board.Note(chi.URLParam(r, "id"))
	writeValue(w, r, http.StatusOK, n, err)
}

// EditNote handles PUT /notes/{id}/content. The write happens in the
// background; the response only confirms the edit was accepted.
func (h *Handler) EditNote(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	var err error
	if req.Content != nil {
		err = h.board.EditMarkdown(id, *req.Content)
	} else {
		err = h.board.EditScene(id, req.Scene)
	}
	writeResult(w, r, err, "", "accepted")
}

// FlushNote handles POST /notes/{id}/flush.
func (h *Handler) FlushNote(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.board.FlushNote(r.Context(), chi.URLParam(r, "id")), "", "saved")
}

// MoveNote handles PUT /notes/{id}/position.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.board.Move(chi.URLParam(r, "id"), geometry.Point{X: req.X, Y: req.Y})
	writeResult(w, r, err, "", "moved")
}

// ResizeNote handles PUT /notes/{id}/size.
func (h *Handler) ResizeNote(w http.ResponseWriter, r *http.Request) {
	var req SizeRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, r, h.board.Resize(chi.URLParam(r, "id"), req.Width, req.Height), "", "resized")
}

// RecolorNote handles PUT /notes/{id}/color.
func (h *Handler) RecolorNote(w http.ResponseWriter, r *http.Request) {
	var req ColorRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, r, h.board.Recolor(chi.URLParam(r, "id"), req.Color), "", "recolored")
}

// RenameNote handles POST /notes/{id}/rename.
func (h *Handler) RenameNote(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.board.RenameNote(r.Context(), chi.URLParam(r, "id"), req.Name)
	writeValue(w, r, http.StatusOK, n, err)
}

// RemoveNote handles DELETE /notes/{id}. The file stays in the vault.
func (h *Handler) RemoveNote(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.board.RemoveFromCanvas(r.Context(), chi.URLParam(r, "id")), "", "removed")
}

// DeleteNote handles DELETE /notes/{id}/file.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	writeResult(w, r, h.board.DeleteNote(r.Context(), chi.URLParam(r, "id")), "", "deleted")
}

// Pan handles POST /camera/pan.
func (h *Handler) Pan(w http.ResponseWriter, r *http.Request) {
	var req PanRequest
	if !decode(w, r, &req) {
		return
	}
	cam, err := h.board.Pan(req.DX, req.DY)
	writeValue(w, r, http.StatusOK, cam, err)
}

// Zoom handles POST /camera/zoom.
func (h *Handler) Zoom(w http.ResponseWriter, r *http.Request) {
	var req ZoomRequest
	if !decode(w, r, &req) {
		return
	}
	cam, err := h.board.ZoomAt(
		geometry.Point{X: req.PointerX, Y: req.PointerY},
		geometry.Point{X: req.ViewportX, Y: req.ViewportY},
		req.Zoom,
	)
	writeValue(w, r, http.StatusOK, cam, err)
}

// SwitchVault handles POST /vault.
func (h *Handler) SwitchVault(w http.ResponseWriter, r *http.Request) {
	var req VaultRequest
	if !decode(w, r, &req) {
		return
	}
	root, err := h.board.SwitchVault(r.Context(), req.Path)
	writeResult(w, r, err, root, "vault opened")
}
