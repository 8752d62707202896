package sandbox

import (
	"sync"
)

// MemoryWindow is an in-process Window for tests and single-process
// embedding. Host posts arrive on ToGuest; a simulated guest feeds
// frames back through Handle.Deliver.
type MemoryWindow struct {
	mu      sync.Mutex
	closed  bool
	toGuest chan []byte
}

// NewMemoryWindow creates a loopback window with a buffered outbound
// channel.
func NewMemoryWindow() *MemoryWindow {
	return &MemoryWindow{
		toGuest: make(chan []byte, 64),
	}
}

// Post delivers host bytes to the simulated guest.
func (w *MemoryWindow) Post(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	select {
	case w.toGuest <- data:
		return nil
	default:
		return ErrClosed
	}
}

// ToGuest returns the channel carrying host posts.
func (w *MemoryWindow) ToGuest() <-chan []byte {
	return w.toGuest
}

// Close marks the window closed.
func (w *MemoryWindow) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.closed = true
		close(w.toGuest)
	}
	return nil
}
