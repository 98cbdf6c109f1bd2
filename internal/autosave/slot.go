// Package autosave coalesces note writes: each note has at most one write
// in flight and at most one pending payload, and always converges to the
// most recently requested content.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/mural/internal/apperr"
	"github.com/starford/mural/internal/checksum"
)

// State is the save state of one note.
type State int

const (
	// Idle: no write in flight.
	Idle State = iota
	// Saving: one write in flight, nothing pending.
	Saving
	// SavingNext: one write in flight and a newer payload waiting.
	SavingNext
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Saving:
		return "saving"
	case SavingNext:
		return "saving-next"
	default:
		return "unknown"
	}
}

// WriteFunc persists data at path.
type WriteFunc func(path string, data []byte) error

// Slot serializes writes for a single note.
type Slot struct {
	id     string
	write  WriteFunc
	logger *slog.Logger

	mu          sync.Mutex
	path        string
	state       State
	pending     []byte
	failed      []byte // last payload whose write failed, until superseded
	lastErr     error
	confirmed   string // checksum of the payload last written successfully
	confirmedAt time.Time
	idle        chan struct{} // closed while state == Idle
	writes      int
}

func newSlot(id, path string, write WriteFunc, logger *slog.Logger) *Slot {
	idle := make(chan struct{})
	close(idle)
	return &Slot{id: id, path: path, write: write, logger: logger, idle: idle}
}

// RequestSave writes data now if the slot is idle, otherwise keeps it as
// the single pending payload, replacing any older one. It never blocks on
// I/O.
func (s *Slot) RequestSave(data []byte) {
	data = append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Idle:
		if s.failed == nil && s.confirmed != "" && checksum.Sum(data) == s.confirmed {
			return
		}
		s.failed = nil
		s.startLocked()
		go s.run(data)
	case Saving, SavingNext:
		s.pending = data
		s.state = SavingNext
	}
}

func (s *Slot) startLocked() {
	s.state = Saving
	s.idle = make(chan struct{})
}

// run writes data, then any payload that became pending meanwhile, until
// nothing is pending.
func (s *Slot) run(data []byte) {
	for {
		s.mu.Lock()
		path := s.path
		s.mu.Unlock()

		err := s.write(path, data)

		s.mu.Lock()
		s.recordLocked(path, data, err)
		if s.pending != nil {
			data, s.pending = s.pending, nil
			s.state = Saving
			s.mu.Unlock()
			continue
		}
		s.state = Idle
		close(s.idle)
		s.mu.Unlock()
		return
	}
}

func (s *Slot) recordLocked(path string, data []byte, err error) {
	s.writes++
	if err != nil {
		s.lastErr = err
		// Kept for retry; a newer pending payload supersedes it.
		s.failed = data
		s.logger.Warn("autosave: write failed",
			slog.String("note", s.id),
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	s.lastErr = nil
	s.failed = nil
	s.confirmed = checksum.Sum(data)
	s.confirmedAt = time.Now()
}

// Flush waits for the in-flight write, bounded by ctx, then writes live
// synchronously. live is the current editor content, which may be newer
// than any queued payload. A write already confirmed for live is skipped.
func (s *Slot) Flush(ctx context.Context, live []byte) error {
	for {
		s.mu.Lock()
		if s.state == Idle {
			break
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return apperr.New(apperr.ErrTimeout, "autosave: flush", s.Path())
		}
	}

	// Locked, idle.
	if live == nil {
		live = s.failed
	}
	if live == nil || (s.failed == nil && s.confirmed == checksum.Sum(live)) {
		s.mu.Unlock()
		return nil
	}
	live = append([]byte(nil), live...)
	s.failed = nil
	s.startLocked()
	path := s.path
	s.mu.Unlock()

	err := s.write(path, live)

	s.mu.Lock()
	s.recordLocked(path, live, err)
	if s.pending != nil {
		next := s.pending
		s.pending = nil
		s.state = Saving
		s.mu.Unlock()
		go s.run(next)
		return err
	}
	s.state = Idle
	close(s.idle)
	s.mu.Unlock()
	return err
}

// Wait blocks until the slot is idle or ctx is done.
func (s *Slot) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.state == Idle {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return apperr.New(apperr.ErrTimeout, "autosave: wait", s.Path())
		}
	}
}

// Retarget changes the file subsequent writes go to.
func (s *Slot) Retarget(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// Discard drops the pending payload and any failed payload.
func (s *Slot) Discard() {
	s.mu.Lock()
	s.pending = nil
	s.failed = nil
	if s.state == SavingNext {
		s.state = Saving
	}
	s.mu.Unlock()
}

// Path returns the current write target.
func (s *Slot) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// State returns the current state.
func (s *Slot) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status is a snapshot of a slot.
type Status struct {
	State       State
	Confirmed   string
	ConfirmedAt time.Time
	Writes      int
	LastErr     error
	HasFailed   bool
}

// Status returns a snapshot of the slot.
func (s *Slot) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:       s.state,
		Confirmed:   s.confirmed,
		ConfirmedAt: s.confirmedAt,
		Writes:      s.writes,
		LastErr:     s.lastErr,
		HasFailed:   s.failed != nil,
	}
}

// markConfirmed records data as already on disk, e.g. right after a load.
func (s *Slot) markConfirmed(data []byte) {
	s.mu.Lock()
	s.confirmed = checksum.Sum(data)
	s.mu.Unlock()
}
