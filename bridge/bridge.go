// Package bridge orchestrates widget sessions: it resolves content,
// creates sandboxes, runs the per-session message loop and speaks the
// guest's wire convention through a protocol adapter.
//
// One Bridge serves many concurrent sessions. Sessions are keyed by the
// tool-call id that produced the widget; the process-wide overlay slot is
// shared across all of them.
package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/hostbridge/widgetkit/capability"
	"github.com/hostbridge/widgetkit/content"
	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
	"github.com/hostbridge/widgetkit/logging"
	"github.com/hostbridge/widgetkit/sandbox"
	"github.com/hostbridge/widgetkit/session"
	"github.com/hostbridge/widgetkit/telemetry"
	"github.com/hostbridge/widgetkit/traffic"
)

// ProtocolVersion is the handshake version offered to JSON-RPC guests.
const ProtocolVersion = "2025-06-18"

// Common errors.
var (
	ErrNoResolver     = stderrors.New("bridge requires a content resolver")
	ErrUnknownSession = stderrors.New("unknown session")
	ErrDuplicateID    = stderrors.New("session id already in use")
)

// Config holds bridge-wide settings.
type Config struct {
	// Session bounds height negotiation per widget.
	Session session.Config

	// Sandbox configures the sandbox host created when none is supplied.
	Sandbox sandbox.HostConfig

	// Flags selects sandbox grants for widget frames.
	Flags sandbox.Flags

	// CallTimeout bounds each delegated tool call. Zero falls back to
	// capability.DefaultCallTimeout. The same bound applies under both
	// wire conventions.
	CallTimeout time.Duration

	// Theme, Locale and Platform seed the host context of new sessions.
	Theme    string
	Locale   string
	Platform string

	// HostName and HostVersion identify the host in the handshake.
	HostName    string
	HostVersion string
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Session:     session.DefaultConfig(),
		Sandbox:     sandbox.DefaultHostConfig(),
		Flags:       sandbox.DefaultFlags(),
		CallTimeout: capability.DefaultCallTimeout,
		Theme:       "light",
		Locale:      "en-US",
		Platform:    "web",
		HostName:    "widgetkit",
		HostVersion: "1.0.0",
	}
}

// Hooks lets the embedding host observe session events. All entries are
// optional and are invoked from the session's message loop.
type Hooks struct {
	// HeightChanged fires when a guest height report survives clamping.
	HeightChanged func(widgetID string, height int)

	// DisplayModeChanged fires when a session's granted mode changes,
	// including demotions caused by another session taking the overlay.
	DisplayModeChanged func(widgetID string, mode session.DisplayMode)

	// ModalRequested fires when a typed-envelope guest asks for a modal
	// presentation. The host decides whether to open the second window.
	ModalRequested func(widgetID string)

	// SessionErrored fires when a session reaches its terminal state.
	SessionErrored func(widgetID string, message string)
}

// Options configures a Bridge.
type Options struct {
	Config       Config
	Host         *sandbox.Host
	Resolver     content.Resolver
	Capabilities capability.Set
	Traffic      traffic.Sink
	Logger       *logging.Logger
	Tracer       *telemetry.Tracer
	Hooks        Hooks
}

// Bridge mediates between sandboxed widgets and the host.
type Bridge struct {
	config Config
	host   *sandbox.Host

	resolver content.Resolver
	proxies  *capability.Proxies
	caps     capability.Set
	sink     traffic.Sink
	logger   *logging.Logger
	tracer   *telemetry.Tracer
	hooks    Hooks
	overlay  *session.Overlay

	// grantMu serializes the whole request-demote-apply sequence of a
	// display-mode change. The overlay slot alone is not enough: a stale
	// grant applied after a later demotion would leave two sessions in an
	// overlay mode.
	grantMu sync.Mutex

	mu      sync.Mutex
	widgets map[string]*Widget
}

// New creates a Bridge. A sandbox host is created when none is given.
func New(opts Options) (*Bridge, error) {
	if opts.Resolver == nil {
		return nil, ErrNoResolver
	}

	cfg := opts.Config
	if cfg.Session == (session.Config{}) {
		cfg.Session = session.DefaultConfig()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = capability.DefaultCallTimeout
	}
	if cfg.HostName == "" {
		cfg.HostName = DefaultConfig().HostName
	}
	if cfg.HostVersion == "" {
		cfg.HostVersion = DefaultConfig().HostVersion
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	sink := opts.Traffic
	if sink == nil {
		sink = traffic.Discard{}
	}

	host := opts.Host
	if host == nil {
		host = sandbox.NewHost(cfg.Sandbox, logger)
	}

	return &Bridge{
		config:   cfg,
		host:     host,
		resolver: opts.Resolver,
		proxies:  capability.NewProxies(opts.Capabilities, logger, tracer),
		caps:     opts.Capabilities,
		sink:     sink,
		logger:   logger.WithComponent("bridge"),
		tracer:   tracer,
		hooks:    opts.Hooks,
		overlay:  session.NewOverlay(),
		widgets:  make(map[string]*Widget),
	}, nil
}

// Host returns the sandbox host serving this bridge's documents. Mount it
// under /sandbox/ on the embedding server.
func (b *Bridge) Host() *sandbox.Host {
	return b.host
}

// CreateParams describes one widget invocation.
type CreateParams struct {
	// ToolID is the tool-call id that produced the widget. It keys the
	// session for its whole lifetime.
	ToolID string

	// ServerID names the origin server for delegated calls.
	ServerID string

	// Protocol selects the wire convention the widget speaks.
	Protocol envelope.Protocol

	// ToolName is the invoked tool, for logging and guest globals.
	ToolName string

	// ToolInput and ToolOutput seed the guest's view of the invocation
	// that produced it. Either may be nil.
	ToolInput  json.RawMessage
	ToolOutput json.RawMessage
}

// CreateSession resolves the widget's content, builds its sandbox and
// starts its message loop. A Widget is returned even when content
// resolution fails; such a session is already in the terminal Errored
// state so the host can render its failure banner.
func (b *Bridge) CreateSession(ctx context.Context, params CreateParams) (*Widget, error) {
	codec, err := envelope.ForProtocol(params.Protocol)
	if err != nil {
		return nil, err
	}

	hostCtx := session.HostContext{
		Theme:    b.config.Theme,
		Locale:   b.config.Locale,
		Platform: b.config.Platform,
	}
	sess := session.New(params.ToolID, params.Protocol, b.config.Session, hostCtx)

	_, span := b.tracer.StartSessionSpan(ctx, params.ToolID, params.Protocol.String())

	w := &Widget{
		bridge:     b,
		session:    sess,
		serverID:   params.ServerID,
		toolName:   params.ToolName,
		toolInput:  params.ToolInput,
		toolOutput: params.ToolOutput,
		codec:      codec,
		pendings:   pendingTable(),
		logger:     b.logger.WithComponent("session").WithWidget(params.ToolID),
		span:       span,
	}

	b.mu.Lock()
	if _, exists := b.widgets[params.ToolID]; exists {
		b.mu.Unlock()
		b.tracer.EndSessionSpan(span, "", "duplicate id")
		return nil, ErrDuplicateID
	}
	b.widgets[params.ToolID] = w
	b.mu.Unlock()

	resolved, err := b.resolver.Fetch(ctx, params.ToolID)
	if err != nil {
		w.terminate(errors.New(errors.CodeContentUnavailable, "widget content unavailable",
			errors.WithCause(err), errors.WithWidget(params.ToolID)))
		return w, nil
	}

	handle, err := b.host.CreateSandbox(resolved.HTML, resolved.CSP, b.config.Flags)
	if err != nil {
		w.terminate(errors.New(errors.CodeSandboxFailed, "sandbox creation failed",
			errors.WithCause(err), errors.WithWidget(params.ToolID)))
		return w, nil
	}
	w.handle = handle

	w.logger.Info("session created", map[string]interface{}{
		"protocol": params.Protocol.String(),
		"server":   params.ServerID,
		"tool":     params.ToolName,
	})

	go w.run()
	return w, nil
}

// Widget returns the session for a tool-call id.
func (b *Bridge) Widget(toolID string) (*Widget, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.widgets[toolID]
	return w, ok
}

// DestroySession tears a session down: its sandbox closes, outstanding
// requests are rejected and the overlay slot is released if held.
func (b *Bridge) DestroySession(toolID string) error {
	w, ok := b.Widget(toolID)
	if !ok {
		return ErrUnknownSession
	}
	w.Close()
	return nil
}

// SetDisplayMode changes a session's presentation from the host side, for
// example when the user closes the overlay. The guest is notified the
// same way as for a mode it requested itself.
func (b *Bridge) SetDisplayMode(toolID string, mode session.DisplayMode) error {
	w, ok := b.Widget(toolID)
	if !ok {
		return ErrUnknownSession
	}
	b.grantMode(w, mode)
	return nil
}

// UpdateHostContext pushes a new theme/locale/viewport snapshot to every
// live session. Unchanged snapshots cause no traffic.
func (b *Bridge) UpdateHostContext(hostCtx session.HostContext) {
	b.mu.Lock()
	widgets := make([]*Widget, 0, len(b.widgets))
	for _, w := range b.widgets {
		widgets = append(widgets, w)
	}
	b.mu.Unlock()

	for _, w := range widgets {
		w.UpdateHostContext(hostCtx)
	}
}

// OverlayHolder returns the session holding the overlay slot, if any.
func (b *Bridge) OverlayHolder() (string, session.DisplayMode) {
	return b.overlay.Holder()
}

// Close destroys every session.
func (b *Bridge) Close() error {
	b.mu.Lock()
	widgets := make([]*Widget, 0, len(b.widgets))
	for _, w := range b.widgets {
		widgets = append(widgets, w)
	}
	b.mu.Unlock()

	for _, w := range widgets {
		w.Close()
	}
	return nil
}

// grantMode routes a display-mode change through the overlay slot. A
// demoted session is notified before the requester sees its grant, so no
// observer ever sees two overlay sessions at once. Requests arrive
// concurrently from every session's message loop; grantMu keeps each
// request-demote-apply sequence whole.
func (b *Bridge) grantMode(w *Widget, mode session.DisplayMode) {
	b.grantMu.Lock()
	defer b.grantMu.Unlock()

	demoted, _ := b.overlay.Request(w.session.ID(), mode)
	if demoted != "" {
		if dw, ok := b.Widget(demoted); ok {
			dw.applyMode(session.ModeInline)
		}
	}
	w.applyMode(mode)
}

// forget removes a closed session from the registry.
func (b *Bridge) forget(toolID string) {
	b.mu.Lock()
	delete(b.widgets, toolID)
	b.mu.Unlock()
}
