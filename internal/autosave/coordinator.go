package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Coordinator owns one Slot per editable note.
type Coordinator struct {
	write        WriteFunc
	logger       *slog.Logger
	flushTimeout time.Duration

	mu    sync.Mutex
	slots map[string]*Slot
}

// New creates a coordinator that persists payloads with write. Flushes
// wait at most flushTimeout for an in-flight write.
func New(write WriteFunc, logger *slog.Logger, flushTimeout time.Duration) *Coordinator {
	if flushTimeout <= 0 {
		flushTimeout = 3 * time.Second
	}
	return &Coordinator{
		write:        write,
		logger:       logger,
		flushTimeout: flushTimeout,
		slots:        make(map[string]*Slot),
	}
}

// Slot returns the slot for noteID, creating it for path if needed.
func (c *Coordinator) Slot(noteID, path string) *Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[noteID]
	if !ok {
		s = newSlot(noteID, path, c.write, c.logger)
		c.slots[noteID] = s
	}
	return s
}

func (c *Coordinator) lookup(noteID string) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[noteID]
	return s, ok
}

// Track registers a note whose content at path is known to equal data, so
// an identical first save is skipped.
func (c *Coordinator) Track(noteID, path string, data []byte) {
	c.Slot(noteID, path).markConfirmed(data)
}

// RequestSave queues data for noteID at path.
func (c *Coordinator) RequestSave(noteID, path string, data []byte) {
	s := c.Slot(noteID, path)
	s.Retarget(path)
	s.RequestSave(data)
}

// Flush forces live to disk for one note. Notes without a slot have
// nothing in flight and are written directly.
func (c *Coordinator) Flush(ctx context.Context, noteID, path string, live []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.flushTimeout)
	defer cancel()
	s := c.Slot(noteID, path)
	s.Retarget(path)
	return s.Flush(ctx, live)
}

// FlushAll flushes every listed note; live maps note id to its target and
// current content. All notes are attempted; errors are joined.
func (c *Coordinator) FlushAll(ctx context.Context, live map[string]Payload) error {
	var errs []error
	for id, p := range live {
		if err := c.Flush(ctx, id, p.Path, p.Data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Payload is a note's write target and current content.
type Payload struct {
	Path string
	Data []byte
}

// Retarget points future writes for noteID at path. Callers flush before a
// rename so no write for the old path is in flight.
func (c *Coordinator) Retarget(noteID, path string) {
	if s, ok := c.lookup(noteID); ok {
		s.Retarget(path)
	}
}

// Forget drops pending work for noteID, waits for an in-flight write to
// finish, and removes the slot. Used before deleting a note's file so a
// late write cannot recreate it.
func (c *Coordinator) Forget(ctx context.Context, noteID string) error {
	s, ok := c.lookup(noteID)
	if !ok {
		return nil
	}
	s.Discard()
	ctx, cancel := context.WithTimeout(ctx, c.flushTimeout)
	defer cancel()
	err := s.Wait(ctx)

	c.mu.Lock()
	delete(c.slots, noteID)
	c.mu.Unlock()
	return err
}

// Status returns the status of noteID's slot.
func (c *Coordinator) Status(noteID string) (Status, bool) {
	s, ok := c.lookup(noteID)
	if !ok {
		return Status{}, false
	}
	return s.Status(), true
}

// Confirmed returns the checksum of the content last confirmed on disk for
// noteID, or "".
func (c *Coordinator) Confirmed(noteID string) string {
	st, _ := c.Status(noteID)
	return st.Confirmed
}

// WaitIdle waits for every slot to go idle.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	slots := make([]*Slot, 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.Unlock()

	for _, s := range slots {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
