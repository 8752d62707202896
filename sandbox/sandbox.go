package sandbox

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/hostbridge/widgetkit/errors"
)

// Common errors.
var (
	ErrClosed      = stderrors.New("sandbox closed")
	ErrNotAttached = stderrors.New("no guest window attached")
)

// Window is the host-side view of one guest content window.
type Window interface {
	// Post sends raw bytes to the guest window.
	Post(data []byte) error

	// Close tears the window down.
	Close() error
}

// Inbound is one message received from an owned guest window.
type Inbound struct {
	Source Window
	Data   []byte
}

// CSP carries the content-security hints supplied by the content
// collaborator: domains the widget may connect to and load resources from.
type CSP struct {
	ConnectDomains  []string `json:"connect_domains,omitempty"`
	ResourceDomains []string `json:"resource_domains,omitempty"`
}

// Flags selects the sandbox attribute grants for the outer frame.
// Top-level navigation is never granted.
type Flags struct {
	AllowScripts bool
	AllowForms   bool
	AllowPopups  bool
}

// DefaultFlags grants scripts, forms and popups.
func DefaultFlags() Flags {
	return Flags{AllowScripts: true, AllowForms: true, AllowPopups: true}
}

// Attr renders the iframe sandbox attribute value.
func (f Flags) Attr() string {
	attr := ""
	if f.AllowScripts {
		attr += "allow-scripts"
	}
	if f.AllowForms {
		if attr != "" {
			attr += " "
		}
		attr += "allow-forms"
	}
	if f.AllowPopups {
		if attr != "" {
			attr += " "
		}
		attr += "allow-popups allow-popups-to-escape-sandbox"
	}
	return attr
}

// Handle is one sandbox instance: the windows it created, the inbound
// message stream, and the load/error reporting channel.
type Handle struct {
	token string

	mu      sync.Mutex
	inline  Window
	modal   Window
	owned   map[Window]bool
	closed  bool
	failed  bool
	loadTmr *time.Timer

	recv     chan Inbound
	errs     chan error
	attached chan Window
	done     chan struct{}
}

func newHandle(token string, recvBuffer int, loadTimeout time.Duration) *Handle {
	if recvBuffer <= 0 {
		recvBuffer = 64
	}
	h := &Handle{
		token:    token,
		owned:    make(map[Window]bool),
		recv:     make(chan Inbound, recvBuffer),
		errs:     make(chan error, 1),
		attached: make(chan Window, 2),
		done:     make(chan struct{}),
	}
	if loadTimeout > 0 {
		h.loadTmr = time.AfterFunc(loadTimeout, func() {
			h.fail(errors.New(errors.CodeSandboxFailed, "sandbox failed to load"))
		})
	}
	return h
}

// Token returns the one-time token binding this sandbox to its guest.
func (h *Handle) Token() string {
	return h.token
}

// Recv returns the channel of inbound guest messages. Readers should
// select on Done as well; the channel stays open after close so
// concurrent deliveries cannot panic.
func (h *Handle) Recv() <-chan Inbound {
	return h.recv
}

// Done is closed when the handle closes.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports at most one terminal sandbox failure.
func (h *Handle) Err() <-chan error {
	return h.errs
}

// Attached signals each guest window as it connects. The typed-envelope
// adapter infers readiness from the first attach, the analogue of the
// iframe load event.
func (h *Handle) Attached() <-chan Window {
	return h.attached
}

// AttachWindow registers a guest window with the handle. The first
// non-modal attach cancels the load deadline.
func (h *Handle) AttachWindow(w Window, modal bool) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.owned[w] = true
	if modal {
		if h.modal != nil {
			delete(h.owned, h.modal)
			h.modal.Close()
		}
		h.modal = w
	} else {
		h.inline = w
		if h.loadTmr != nil {
			h.loadTmr.Stop()
			h.loadTmr = nil
		}
	}
	h.mu.Unlock()

	// The signal must not be lost: a typed-envelope guest reconnecting
	// after window churn still needs its globals push. Block until the
	// message loop drains the channel or the handle closes.
	select {
	case h.attached <- w:
	case <-h.done:
	}
	return nil
}

// DetachWindow unregisters a window, e.g. when its connection drops or
// the modal presentation closes.
func (h *Handle) DetachWindow(w Window) {
	h.mu.Lock()
	delete(h.owned, w)
	if h.inline == w {
		h.inline = nil
	}
	if h.modal == w {
		h.modal = nil
	}
	h.mu.Unlock()
}

// Owns reports whether the window was created for this sandbox. Messages
// from any other source must never be dispatched.
func (h *Handle) Owns(w Window) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.owned[w]
}

// Deliver routes one inbound frame from a claimed source window. Frames
// from windows the handle does not own are dropped and Deliver returns
// false.
func (h *Handle) Deliver(source Window, data []byte) bool {
	h.mu.Lock()
	ok := h.owned[source] && !h.closed
	h.mu.Unlock()

	if !ok {
		return false
	}
	select {
	case h.recv <- Inbound{Source: source, Data: data}:
		return true
	case <-h.done:
		return false
	}
}

// Post sends bytes to the guest: the modal window when one is attached,
// otherwise the inline window.
func (h *Handle) Post(data []byte) error {
	h.mu.Lock()
	w := h.modal
	if w == nil {
		w = h.inline
	}
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if w == nil {
		return ErrNotAttached
	}
	return w.Post(data)
}

// Close tears down every owned window and closes the message stream.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.loadTmr != nil {
		h.loadTmr.Stop()
		h.loadTmr = nil
	}
	windows := make([]Window, 0, len(h.owned))
	for w := range h.owned {
		windows = append(windows, w)
	}
	h.owned = make(map[Window]bool)
	h.inline, h.modal = nil, nil
	h.mu.Unlock()

	for _, w := range windows {
		w.Close()
	}
	close(h.done)
	return nil
}

// fail reports a terminal sandbox failure once.
func (h *Handle) fail(err error) {
	h.mu.Lock()
	if h.failed || h.closed {
		h.mu.Unlock()
		return
	}
	h.failed = true
	h.mu.Unlock()

	select {
	case h.errs <- err:
	default:
	}
}
