package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mural/internal/board"
	"github.com/starford/mural/internal/noteservice"
)

// NewRouter creates a chi router with all bridge routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(b *board.Board, svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(b, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/state", h.State)
	r.Post("/vault", h.SwitchVault)

	// Vault files.
	r.Get("/files", h.ListFiles)
	r.Post("/files", h.CreateFile)
	r.Post("/files/rename", h.RenameFile)
	r.Get("/files/*", h.GetFile)
	r.Delete("/files/*", h.DeleteFile)
	r.Get("/search", h.Search)

	// Canvases.
	r.Get("/canvases", h.ListCanvases)
	r.Post("/canvases", h.CreateCanvas)
	r.Post("/canvases/{name}/open", h.OpenCanvas)
	r.Put("/canvases/{name}", h.RenameCanvas)
	r.Delete("/canvases/{name}", h.DeleteCanvas)

	// Notes on the active canvas.
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/place", h.PlaceFile)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/content", h.EditNote)
		r.Post("/flush", h.FlushNote)
		r.Put("/position", h.MoveNote)
		r.Put("/size", h.ResizeNote)
		r.Put("/color", h.RecolorNote)
		r.Post("/rename", h.RenameNote)
		r.Delete("/", h.RemoveNote)
		r.Delete("/file", h.DeleteNote)
	})

	// Camera.
	r.Post("/camera/pan", h.Pan)
	r.Post("/camera/zoom", h.Zoom)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
