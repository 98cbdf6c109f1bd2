package storage

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mural/internal/models"
)

// Listing is pushed to watcher subscribers after files were added to or
// removed from the vault. It is eventually consistent: it is not linked
// to any particular write.
type Listing struct {
	Root    string
	Files   []models.VaultFile
	Removed []string // file names reported removed or renamed away
}

// Watcher owns the vault directory watch. At most one watch session is
// active at a time: Start replaces any running session.
type Watcher struct {
	fs       *FS
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	session *watchSession

	subsMu sync.Mutex
	subs   map[int]func(Listing)
	nextID int
}

type watchSession struct {
	root    string
	w       *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// NewWatcher creates a stopped watcher for the vault of fs.
func NewWatcher(fs *FS, logger *slog.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 150 * time.Millisecond
	}
	return &Watcher{
		fs:       fs,
		logger:   logger,
		debounce: debounce,
		subs:     make(map[int]func(Listing)),
	}
}

// Subscribe registers fn for listings and returns a function removing it.
// fn runs on the watcher goroutine.
func (w *Watcher) Subscribe(fn func(Listing)) func() {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.subsMu.Lock()
		delete(w.subs, id)
		w.subsMu.Unlock()
	}
}

// Start watches the current vault root, closing any previous session.
func (w *Watcher) Start() error {
	root, err := w.fs.Root()
	if err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close()
		return err
	}

	s := &watchSession{
		root:    root,
		w:       fw,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	w.mu.Lock()
	prev := w.session
	w.session = s
	w.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	go w.run(s)
	w.logger.Info("watcher: started", slog.String("root", root))
	return nil
}

// Stop tears down the active session, if any.
func (w *Watcher) Stop() {
	w.mu.Lock()
	s := w.session
	w.session = nil
	w.mu.Unlock()

	if s != nil {
		s.stop()
		w.logger.Info("watcher: stopped", slog.String("root", s.root))
	}
}

// Active reports whether a session is running.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session != nil
}

// Root returns the directory of the running session, or "".
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return ""
	}
	return w.session.root
}

// stop does not wait for the event loop to exit: the loop may be blocked
// inside a subscriber that is itself waiting on the caller.
func (s *watchSession) stop() {
	select {
	case <-s.done:
		return
	default:
	}
	close(s.done)
	_ = s.w.Close()
}

func (w *Watcher) run(s *watchSession) {
	defer close(s.stopped)

	var timer *time.Timer
	var fire <-chan time.Time
	var removed []string

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			fire = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-s.done:
			return

		case <-fire:
			timer, fire = nil, nil
			w.publish(s, removed)
			removed = nil

		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			if filepath.Dir(ev.Name) != s.root {
				continue
			}
			name := filepath.Base(ev.Name)
			if _, ok := models.KindOf(name); !ok {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				removed = append(removed, name)
				schedule()
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule()
			}

		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) publish(s *watchSession, removed []string) {
	select {
	case <-s.done:
		return
	default:
	}

	files, err := w.fs.List()
	if err != nil {
		w.logger.Warn("watcher: list failed", slog.String("error", err.Error()))
		return
	}

	w.subsMu.Lock()
	subs := make([]func(Listing), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.subsMu.Unlock()

	l := Listing{Root: s.root, Files: files, Removed: removed}
	for _, fn := range subs {
		fn(l)
	}
	w.logger.Debug("watcher: listing published",
		slog.Int("files", len(files)), slog.Int("removed", len(removed)))
}
