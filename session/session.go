package session

import (
	"encoding/json"
	"sync"

	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
)

// Lifecycle is the widget session state.
type Lifecycle int

const (
	// Loading means the sandbox exists but the guest is not ready.
	Loading Lifecycle = iota

	// Ready means the guest completed its handshake (JSON-RPC) or its
	// window attached (typed envelope).
	Ready

	// Errored is terminal until the session is discarded.
	Errored
)

// String returns the lifecycle name.
func (l Lifecycle) String() string {
	switch l {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// DisplayMode is the widget presentation mode.
type DisplayMode string

const (
	ModeInline     DisplayMode = "inline"
	ModePip        DisplayMode = "pip"
	ModeFullscreen DisplayMode = "fullscreen"
)

// IsOverlay reports whether the mode occupies the exclusive overlay slot.
func (m DisplayMode) IsOverlay() bool {
	return m == ModePip || m == ModeFullscreen
}

// ParseDisplayMode normalizes a wire display-mode string.
func ParseDisplayMode(s string) (DisplayMode, bool) {
	switch s {
	case "inline":
		return ModeInline, true
	case "pip", "picture-in-picture":
		return ModePip, true
	case "fullscreen":
		return ModeFullscreen, true
	default:
		return "", false
	}
}

// Viewport describes the space available to the widget.
type Viewport struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	MaxHeight int `json:"maxHeight"`
}

// HostContext is the snapshot pushed to guests. It is re-derivable from
// the session at any time; pushes are idempotent and guests must tolerate
// repeated identical snapshots.
type HostContext struct {
	Theme       string      `json:"theme"`
	Locale      string      `json:"locale"`
	DisplayMode DisplayMode `json:"displayMode"`
	Viewport    Viewport    `json:"viewport"`
	Platform    string      `json:"platform"`
}

// Config bounds height negotiation.
type Config struct {
	// MinHeight and MaxHeight clamp guest-reported content heights.
	MinHeight int
	MaxHeight int

	// HeightEpsilon is the minimum delta that counts as a change,
	// preventing feedback oscillation between guest-measured and
	// host-imposed heights. Minimum effective value is 1.
	HeightEpsilon int
}

// DefaultConfig returns height bounds matching the host's inline card.
func DefaultConfig() Config {
	return Config{
		MinHeight:     80,
		MaxHeight:     600,
		HeightEpsilon: 1,
	}
}

// Session is one widget invocation, keyed by tool-call id.
type Session struct {
	mu sync.Mutex

	id       string
	protocol envelope.Protocol
	config   Config

	lifecycle     Lifecycle
	errMessage    string
	displayMode   DisplayMode
	contentHeight int
	hostContext   HostContext
	ctxPushed     bool

	persisted json.RawMessage
}

// New creates a session in Loading state with an inline display mode.
func New(id string, protocol envelope.Protocol, cfg Config, hostCtx HostContext) *Session {
	if cfg.HeightEpsilon < 1 {
		cfg.HeightEpsilon = 1
	}
	hostCtx.DisplayMode = ModeInline
	if hostCtx.Viewport.MaxHeight == 0 {
		hostCtx.Viewport.MaxHeight = cfg.MaxHeight
	}
	return &Session{
		id:            id,
		protocol:      protocol,
		config:        cfg,
		displayMode:   ModeInline,
		contentHeight: cfg.MinHeight,
		hostContext:   hostCtx,
	}
}

// ID returns the tool-call id.
func (s *Session) ID() string {
	return s.id
}

// Protocol returns the wire convention the guest speaks.
func (s *Session) Protocol() envelope.Protocol {
	return s.protocol
}

// Lifecycle returns the current lifecycle state.
func (s *Session) Lifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lifecycle
}

// MarkReady transitions Loading -> Ready. Ready is idempotent; an errored
// session cannot recover.
func (s *Session) MarkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.lifecycle {
	case Errored:
		return errors.New(errors.CodeSessionClosed, "session already errored", errors.WithWidget(s.id))
	case Ready:
		return nil
	default:
		s.lifecycle = Ready
		return nil
	}
}

// Fail transitions to the terminal Errored state. The first failure
// message wins.
func (s *Session) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle == Errored {
		return
	}
	s.lifecycle = Errored
	s.errMessage = message
}

// ErrMessage returns the failure message, if the session errored.
func (s *Session) ErrMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMessage
}

// DisplayMode returns the current display mode.
func (s *Session) DisplayMode() DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayMode
}

// SetDisplayMode records a granted display mode and folds it into the
// host context snapshot. Returns false if the mode is unchanged.
func (s *Session) SetDisplayMode(mode DisplayMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.displayMode == mode {
		return false
	}
	s.displayMode = mode
	s.hostContext.DisplayMode = mode
	return true
}

// ContentHeight returns the clamped content height.
func (s *Session) ContentHeight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentHeight
}

// ReportHeight records a guest-measured content height. The value is
// clamped to [MinHeight, MaxHeight]; deltas below the epsilon are ignored
// so identical or near-identical reports cause no further mutation.
func (s *Session) ReportHeight(height int) (clamped int, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if height <= 0 {
		return s.contentHeight, false
	}
	if height < s.config.MinHeight {
		height = s.config.MinHeight
	}
	if height > s.config.MaxHeight {
		height = s.config.MaxHeight
	}

	delta := height - s.contentHeight
	if delta < 0 {
		delta = -delta
	}
	if delta < s.config.HeightEpsilon {
		return s.contentHeight, false
	}

	s.contentHeight = height
	return height, true
}

// MaxHeight returns the configured height ceiling.
func (s *Session) MaxHeight() int {
	return s.config.MaxHeight
}

// Context returns the current host context snapshot.
func (s *Session) Context() HostContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostContext
}

// UpdateContext replaces the theme/locale/viewport portion of the host
// context. Returns false when the snapshot is identical, letting callers
// skip redundant pushes.
func (s *Session) UpdateContext(hostCtx HostContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	hostCtx.DisplayMode = s.displayMode
	if hostCtx.Viewport.MaxHeight == 0 {
		hostCtx.Viewport.MaxHeight = s.config.MaxHeight
	}
	if hostCtx == s.hostContext {
		return false
	}
	s.hostContext = hostCtx
	return true
}

// MarkContextPushed records that the guest has seen the initial context
// (carried in the initialize response). Returns true the first time, so
// the caller can suppress the redundant first "changed" notification.
func (s *Session) MarkContextPushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctxPushed {
		return false
	}
	s.ctxPushed = true
	return true
}

// ContextPushed reports whether the initial context reached the guest.
func (s *Session) ContextPushed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctxPushed
}

// PersistedState returns the guest-owned opaque state.
func (s *Session) PersistedState() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted
}

// SetPersistedState stores the guest-owned opaque state. The host only
// stores and forwards it.
func (s *Session) SetPersistedState(state json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = state
}
