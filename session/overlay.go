package session

import "sync"

// Overlay is the process-wide focused-overlay slot. Picture-in-picture
// and fullscreen are exclusive across all sessions the host controls;
// granting either mode to one session demotes whichever session held it.
//
// All mutation goes through Request and Release so the exclusivity
// invariant is enforced atomically.
type Overlay struct {
	mu    sync.Mutex
	owner string
	mode  DisplayMode
}

// NewOverlay creates an empty overlay slot.
func NewOverlay() *Overlay {
	return &Overlay{mode: ModeInline}
}

// Request asks for a display mode on behalf of a session. Inline is
// always granted immediately and unconditionally, releasing the slot if
// the requester held it. Overlay modes take the slot and return the id of
// the session that was demoted to inline, if any.
func (o *Overlay) Request(sessionID string, mode DisplayMode) (demoted string, granted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !mode.IsOverlay() {
		if o.owner == sessionID {
			o.owner = ""
			o.mode = ModeInline
		}
		return "", true
	}

	if o.owner != "" && o.owner != sessionID {
		demoted = o.owner
	}
	o.owner = sessionID
	o.mode = mode
	return demoted, true
}

// Release frees the slot if the session holds it. Called on session
// teardown and on the host-rendered close affordance.
func (o *Overlay) Release(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.owner != sessionID {
		return false
	}
	o.owner = ""
	o.mode = ModeInline
	return true
}

// Holder returns the session currently holding the slot and its mode.
// An empty id means no session is in an overlay mode.
func (o *Overlay) Holder() (string, DisplayMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.owner, o.mode
}
