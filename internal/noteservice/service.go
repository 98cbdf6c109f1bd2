// Package noteservice exposes vault files, as opposed to their placements on
// canvases, to the UI bridge and the MCP server. It combines the file store
// with the search index.
package noteservice

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/checksum"
	"github.com/starford/mural/internal/index"
	"github.com/starford/mural/internal/models"
	"github.com/starford/mural/internal/parser"
	"github.com/starford/mural/internal/scene"
	"github.com/starford/mural/internal/storage"
)

// FileDetail is the full representation of a vault file.
type FileDetail struct {
	Path        string          `json:"path"`
	Title       string          `json:"title"`
	Kind        models.Kind     `json:"type"`
	Content     string          `json:"content,omitempty"`
	Scene       json.RawMessage `json:"sceneData,omitempty"`
	Checksum    string          `json:"checksum"`
	Tags        []string        `json:"tags"`
	Frontmatter map[string]any  `json:"frontmatter,omitempty"`
	Backlinks   []string        `json:"backlinks"`
}

// Service coordinates storage and index operations.
type Service struct {
	files  storage.Provider
	db     *index.DB
	logger *slog.Logger
}

// NewService creates a new file service.
func NewService(files storage.Provider, db *index.DB, logger *slog.Logger) *Service {
	return &Service{files: files, db: db, logger: logger}
}

// ListFiles returns the vault's note files, newest first.
func (s *Service) ListFiles(_ context.Context) ([]models.VaultFile, error) {
	files, err := s.files.List()
	if err != nil {
		return nil, err
	}
	return nonNilSlice(files), nil
}

// ReadFile reads a vault file and enriches it with index data.
func (s *Service) ReadFile(_ context.Context, path string) (*FileDetail, error) {
	kind, ok := models.KindOf(path)
	if !ok {
		return nil, apperr.New(apperr.ErrInvalidName, "noteservice: unsupported file type", path)
	}
	data, err := s.files.Read(path)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(path, kind, data)
}

// CreateFile creates a vault file of the given kind. Non-empty content
// replaces the initial empty document; drawing content must be a valid
// scene.
func (s *Service) CreateFile(_ context.Context, name string, kind models.Kind, content []byte) (*FileDetail, error) {
	if kind == models.KindDrawing && len(content) > 0 {
		normalized, err := scene.Normalize(content)
		if err != nil {
			return nil, err
		}
		content = normalized
	}
	path, err := s.files.Create(name, kind)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := s.files.Write(path, content); err != nil {
			return nil, err
		}
	}
	if err := index.Sync(s.db, s.files, s.logger); err != nil {
		s.logger.Warn("noteservice: index sync failed", slog.String("error", err.Error()))
	}
	return s.ReadFile(context.Background(), path)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// Reindex brings the index up to date with the current vault.
func (s *Service) Reindex(_ context.Context) error {
	return index.Sync(s.db, s.files, s.logger)
}

// Backlinks returns all file paths that link to the given target.
func (s *Service) Backlinks(_ context.Context, target string) ([]string, error) {
	return s.db.Backlinks(target)
}

func (s *Service) buildDetail(path string, kind models.Kind, data []byte) (*FileDetail, error) {
	title := models.StripExt(models.BaseName(path))
	d := &FileDetail{
		Path:     path,
		Title:    title,
		Kind:     kind,
		Checksum: checksum.Sum(data),
		Tags:     []string{},
	}
	if kind == models.KindDrawing {
		d.Scene = json.RawMessage(data)
		d.Backlinks = []string{}
		return d, nil
	}

	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.db.Backlinks(title)
	if err != nil {
		return nil, err
	}
	d.Content = string(data)
	d.Tags = nonNilSlice(res.Tags)
	d.Frontmatter = res.Frontmatter
	d.Backlinks = nonNilSlice(bl)
	return d, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
