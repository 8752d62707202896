// Package traffic records every message that crosses the host/guest
// boundary. Sinks are deliberately fire-and-forget: logging traffic must
// never slow down or fail the bridge itself.
package traffic

import (
	"sync"
	"time"
)

// Direction indicates which way a message crossed the boundary.
type Direction string

const (
	// HostToGuest marks messages posted into the sandbox.
	HostToGuest Direction = "host-to-ui"

	// GuestToHost marks messages received from the sandbox.
	GuestToHost Direction = "ui-to-host"
)

// Record is one message crossing the boundary.
type Record struct {
	WidgetID  string    `json:"widget_id"`
	ServerID  string    `json:"server_id,omitempty"`
	Direction Direction `json:"direction"`
	Protocol  string    `json:"protocol"`
	Method    string    `json:"method,omitempty"`
	Message   []byte    `json:"message"`
	Time      time.Time `json:"time"`
}

// Sink receives boundary traffic. Implementations must not block.
type Sink interface {
	Log(rec Record)
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Log implements Sink.
func (Discard) Log(Record) {}

// MemorySink keeps the most recent records in a bounded ring.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
}

// NewMemorySink creates a sink retaining up to capacity records.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemorySink{
		records: make([]Record, capacity),
	}
}

// Log stores the record, evicting the oldest when full.
func (s *MemorySink) Log(rec Record) {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = rec
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
}

// Records returns retained records oldest-first.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	if s.full {
		out = append(out, s.records[s.next:]...)
	}
	out = append(out, s.records[:s.next]...)
	return out
}

// Multi fans a record out to several sinks.
type Multi []Sink

// Log implements Sink.
func (m Multi) Log(rec Record) {
	for _, s := range m {
		s.Log(rec)
	}
}
