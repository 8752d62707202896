// Package pending correlates outgoing requests to their eventual
// responses by opaque id.
//
// Entries are created when the host sends a request to the guest.
// Guest-originated requests are answered inside the message handler and
// never populate the table. Resolve and Reject are single-fire: whichever
// lands first wins and the other is a no-op. Sessions reject every
// outstanding entry on teardown so no waiter is left orphaned.
package pending

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
)

// Common errors.
var (
	ErrClosed    = stderrors.New("pending table closed")
	ErrDuplicate = stderrors.New("duplicate request id")
)

// Outcome carries the terminal state of one pending request. Exactly one
// of Env and Err is set.
type Outcome struct {
	Env *envelope.Envelope
	Err error
}

type entry struct {
	ch    chan Outcome
	timer *time.Timer
}

// Table tracks requests awaiting responses, keyed by normalized id.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[string]*entry),
	}
}

// NextID mints a fresh request id for host-to-guest calls.
func NextID() envelope.ID {
	return envelope.StringID(uuid.New().String())
}

// Register adds a pending entry and returns the channel its outcome will
// arrive on. The channel receives exactly one Outcome and is then closed.
// A non-zero deadline rejects the entry with a timeout error when it
// elapses; a zero deadline waits forever.
func (t *Table) Register(id envelope.ID, deadline time.Duration) (<-chan Outcome, error) {
	key := id.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, exists := t.entries[key]; exists {
		return nil, ErrDuplicate
	}

	e := &entry{ch: make(chan Outcome, 1)}
	if deadline > 0 {
		e.timer = time.AfterFunc(deadline, func() {
			t.Reject(id, errors.New(errors.CodeTimeout, "request timed out"))
		})
	}
	t.entries[key] = e
	return e.ch, nil
}

// Resolve completes the entry with a response envelope. Returns false if
// no entry is outstanding for the id.
func (t *Table) Resolve(id envelope.ID, env *envelope.Envelope) bool {
	return t.finish(id.Key(), Outcome{Env: env})
}

// Reject completes the entry with an error. Returns false if no entry is
// outstanding for the id.
func (t *Table) Reject(id envelope.ID, err error) bool {
	return t.finish(id.Key(), Outcome{Err: err})
}

// RejectAll rejects every outstanding entry and closes the table. Used on
// session teardown to garbage-collect orphaned waiters.
func (t *Table) RejectAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.closed = true
	t.mu.Unlock()

	for _, e := range entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		e.ch <- Outcome{Err: err}
		close(e.ch)
	}
}

// Len returns the number of outstanding entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) finish(key string, outcome Outcome) bool {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.ch <- outcome
	close(e.ch)
	return true
}
