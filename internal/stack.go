package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/mural/internal/api"
	"github.com/starford/mural/internal/autosave"
	"github.com/starford/mural/internal/board"
	"github.com/starford/mural/internal/canvasstate"
	"github.com/starford/mural/internal/index"
	"github.com/starford/mural/internal/noteservice"
	"github.com/starford/mural/internal/sse"
	"github.com/starford/mural/internal/storage"
)

// stack is the wired set of long-lived components.
type stack struct {
	logger   *slog.Logger
	resolver *storage.Resolver
	files    *storage.FS
	watcher  *storage.Watcher
	store    *canvasstate.Store
	saves    *autosave.Coordinator
	board    *board.Board
	db       *index.DB
	svc      *noteservice.Service
	broker   *sse.Broker
	handler  http.Handler

	unsubscribe []func()
}

// openVault prepares the directories and the pieces every entry point
// shares: vault resolution, file access and the search index.
func openVault(cfg *Config, logger *slog.Logger) (*storage.Resolver, *storage.FS, *index.DB, error) {
	for _, dir := range []string{cfg.App.DataDir, cfg.App.ConfigDir, filepath.Dir(cfg.Index.Path)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	resolver := storage.NewResolver(cfg.App.ConfigDir, cfg.App.DataDir)
	files := storage.NewFS(resolver)
	root, err := files.Root()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolve vault: %w", err)
	}
	logger.Info("vault resolved", slog.String("vault_path", root))

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, files, logger); err != nil {
		logger.Warn("index: initial sync failed", slog.String("error", err.Error()))
	}
	return resolver, files, db, nil
}

// newStack wires the application and opens the current canvas. The vault
// watcher is not started.
func newStack(ctx context.Context, cfg *Config, logger *slog.Logger) (*stack, error) {
	resolver, files, db, err := openVault(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &stack{
		logger:   logger,
		resolver: resolver,
		files:    files,
		db:       db,
		watcher:  storage.NewWatcher(files, logger, cfg.Autosave.WatchDebounce),
		store:    canvasstate.New(resolver, logger, cfg.Autosave.StateDebounce),
		saves:    autosave.New(files.Write, logger, cfg.Autosave.FlushTimeout),
		svc:      noteservice.NewService(files, db, logger),
		broker:   sse.NewBroker(2 * time.Second),
	}
	s.board = board.New(files, s.store, s.saves, resolver, logger)

	s.unsubscribe = append(s.unsubscribe,
		s.board.Subscribe(s.onBoardEvent),
		s.watcher.Subscribe(func(l storage.Listing) {
			s.board.HandleListing(context.Background(), l)
		}),
		s.watcher.Subscribe(index.Follow(db, files, logger, s.broker.PublishIndexEvent)),
	)

	if err := s.board.Open(ctx); err != nil {
		s.broker.Close()
		_ = db.Close()
		return nil, fmt.Errorf("open canvas: %w", err)
	}

	s.handler = s.router(cfg)
	return s, nil
}

func (s *stack) router(cfg *Config) http.Handler {
	r := chi.NewRouter()
	r.Use(api.LoopbackOnly)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := s.files.Root(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"vault unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(s.board, s.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, s.broker))
	return r
}

// onBoardEvent forwards board events to the shell and re-points the
// watcher and index after a vault switch.
func (s *stack) onBoardEvent(e board.Event) {
	s.broker.Publish(sse.Event{Type: e.Kind, Data: e})
	if e.Kind != board.EventVaultSwitched {
		return
	}
	if s.watcher.Active() {
		if err := s.watcher.Start(); err != nil {
			s.logger.Warn("watcher: restart failed", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Reset(); err != nil {
		s.logger.Warn("index: reset failed", slog.String("error", err.Error()))
		return
	}
	if err := index.Sync(s.db, s.files, s.logger); err != nil {
		s.logger.Warn("index: sync failed", slog.String("error", err.Error()))
	}
}

// close flushes notes and state, then releases everything else. Order
// matters: pending writes land before the watcher and index go away.
func (s *stack) close(ctx context.Context) error {
	var errs []error
	if err := s.board.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close board: %w", err))
	}
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.watcher.Stop()
	s.broker.Close()
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index: %w", err))
	}
	return errors.Join(errs...)
}
