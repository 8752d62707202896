package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
	"github.com/hostbridge/widgetkit/logging"
	"github.com/hostbridge/widgetkit/pending"
	"github.com/hostbridge/widgetkit/sandbox"
	"github.com/hostbridge/widgetkit/session"
	"github.com/hostbridge/widgetkit/traffic"

	"go.opentelemetry.io/otel/trace"
)

func pendingTable() *pending.Table {
	return pending.NewTable()
}

// Widget is one live session: its state machine, sandbox handle, codec
// and pending-request table.
type Widget struct {
	bridge   *Bridge
	session  *session.Session
	serverID string
	toolName string
	codec    envelope.Codec
	pendings *pending.Table
	logger   *logging.Logger
	span     trace.Span

	// toolInput and toolOutput are the invocation snapshot the guest sees
	// in its initial globals. Later updates travel as notifications.
	toolInput  json.RawMessage
	toolOutput json.RawMessage

	// handle is nil when content resolution failed before a sandbox
	// existed.
	handle *sandbox.Handle

	closeOnce sync.Once
}

// Session exposes the session state machine.
func (w *Widget) Session() *session.Session {
	return w.session
}

// Handle exposes the sandbox handle. Nil for sessions that errored before
// a sandbox was created.
func (w *Widget) Handle() *sandbox.Handle {
	return w.handle
}

// DocumentURL returns the path serving this widget's harness document.
func (w *Widget) DocumentURL() string {
	if w.handle == nil {
		return ""
	}
	return w.bridge.host.DocumentURL(w.handle)
}

// run is the per-session message loop. Everything that mutates the
// session in response to guest traffic happens here.
func (w *Widget) run() {
	for {
		select {
		case in := <-w.handle.Recv():
			w.dispatch(in)
		case win := <-w.handle.Attached():
			w.onAttached(win)
		case err := <-w.handle.Err():
			w.terminate(err)
			return
		case <-w.handle.Done():
			return
		}
	}
}

// onAttached reacts to a guest window connecting. Under the typed
// convention the first attach is the readiness signal and triggers the
// initial globals push; JSON-RPC guests instead announce readiness with
// their initialized notification.
func (w *Widget) onAttached(win sandbox.Window) {
	if w.codec.Protocol() != envelope.TypedEnvelope {
		return
	}
	if w.session.Lifecycle() == session.Loading {
		if err := w.session.MarkReady(); err != nil {
			return
		}
		w.logger.Info("session ready")
	}
	w.pushGlobals()
	if state := w.session.PersistedState(); state != nil {
		env, err := envelope.NewNotification(envelope.TypePushWidgetState,
			map[string]interface{}{"toolId": w.session.ID(), "state": state})
		if err == nil {
			w.send(env)
		}
	}
}

// guard runs fn with panic isolation: a panicking handler or host
// collaborator fails this session instead of the process. Handlers that
// leave the message loop on their own goroutine must go through it too.
func (w *Widget) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("handler panic", map[string]interface{}{"panic": r})
			w.terminate(errors.Newf(errors.CodeInternal, "internal error"))
		}
	}()
	fn()
}

// dispatch decodes and routes one inbound frame. A guest must never be
// able to crash the host, so decode failures drop the frame and any
// handler panic fails only this session.
func (w *Widget) dispatch(in sandbox.Inbound) {
	w.guard(func() {
		env, err := w.codec.Decode(in.Data)
		if err != nil {
			w.logger.Dropped(err.Error(), in.Data)
			w.record(traffic.GuestToHost, "", in.Data)
			return
		}
		w.record(traffic.GuestToHost, env.Method, in.Data)

		if env.IsResponse() {
			if !w.pendings.Resolve(env.ID, env) {
				w.logger.Dropped("response without pending request", in.Data)
			}
			return
		}

		switch w.codec.Protocol() {
		case envelope.JSONRPCApps:
			w.handleJSONRPC(env)
		case envelope.TypedEnvelope:
			w.handleTyped(env)
		}
	})
}

// send encodes and posts one envelope to the guest, recording it.
func (w *Widget) send(env *envelope.Envelope) {
	if w.handle == nil {
		return
	}
	data, err := w.codec.Encode(env)
	if err != nil {
		w.logger.Error("encode failed", map[string]interface{}{
			"method": env.Method, "error": err.Error(),
		})
		return
	}
	if err := w.handle.Post(data); err != nil {
		w.logger.Warn("post failed", map[string]interface{}{
			"method": env.Method, "error": err.Error(),
		})
		return
	}
	w.record(traffic.HostToGuest, env.Method, data)
}

// record logs one boundary crossing to the traffic sink.
func (w *Widget) record(dir traffic.Direction, method string, data []byte) {
	w.bridge.sink.Log(traffic.Record{
		WidgetID:  w.session.ID(),
		ServerID:  w.serverID,
		Direction: dir,
		Protocol:  w.codec.Protocol().String(),
		Method:    method,
		Message:   data,
		Time:      time.Now(),
	})
}

// Call sends a host-originated request to the guest and waits for its
// response. Used by hosts that extend the wire conventions.
func (w *Widget) Call(ctx context.Context, method string, params interface{}) (*envelope.Envelope, error) {
	id := pending.NextID()

	deadline := w.bridge.config.CallTimeout
	ch, err := w.pendings.Register(id, deadline)
	if err != nil {
		return nil, err
	}

	env, err := envelope.NewRequest(id, method, params)
	if err != nil {
		w.pendings.Reject(id, err)
		return nil, err
	}
	w.send(env)

	select {
	case outcome := <-ch:
		if outcome.Err != nil {
			return nil, outcome.Err
		}
		return outcome.Env, nil
	case <-ctx.Done():
		w.pendings.Reject(id, ctx.Err())
		return nil, ctx.Err()
	}
}

// NotifyToolInput streams a partial tool input snapshot to the guest.
func (w *Widget) NotifyToolInput(input interface{}) {
	switch w.codec.Protocol() {
	case envelope.JSONRPCApps:
		env, err := envelope.NewNotification(envelope.MethodToolInput,
			map[string]interface{}{"toolInput": input})
		if err == nil {
			w.send(env)
		}
	case envelope.TypedEnvelope:
		env, err := envelope.NewNotification(envelope.TypeSetGlobals,
			map[string]interface{}{"globals": map[string]interface{}{"toolInput": input}})
		if err == nil {
			w.send(env)
		}
	}
}

// NotifyToolResult delivers the final tool result to the guest.
func (w *Widget) NotifyToolResult(result interface{}) {
	switch w.codec.Protocol() {
	case envelope.JSONRPCApps:
		env, err := envelope.NewNotification(envelope.MethodToolResult,
			map[string]interface{}{"toolResult": result})
		if err == nil {
			w.send(env)
		}
	case envelope.TypedEnvelope:
		env, err := envelope.NewNotification(envelope.TypeToolResponse,
			map[string]interface{}{"detail": result})
		if err == nil {
			w.send(env)
		}
	}
}

// UpdateHostContext folds a new theme/locale/viewport snapshot into the
// session and pushes it to the guest. The push is suppressed until the
// guest has seen its initial context, and skipped entirely when the
// snapshot is unchanged.
func (w *Widget) UpdateHostContext(hostCtx session.HostContext) {
	if !w.session.UpdateContext(hostCtx) {
		return
	}
	w.pushContext()
}

// applyMode records a granted display mode and notifies the guest. Host
// and guest initiated changes travel the same path.
func (w *Widget) applyMode(mode session.DisplayMode) {
	if !w.session.SetDisplayMode(mode) {
		return
	}
	w.pushContext()
	if w.bridge.hooks.DisplayModeChanged != nil {
		w.bridge.hooks.DisplayModeChanged(w.session.ID(), mode)
	}
}

// pushContext sends the current host context to the guest in its wire
// convention, honoring first-push suppression.
func (w *Widget) pushContext() {
	if !w.session.ContextPushed() {
		return
	}
	switch w.codec.Protocol() {
	case envelope.JSONRPCApps:
		env, err := envelope.NewNotification(envelope.MethodHostContextChanged,
			map[string]interface{}{"context": w.session.Context()})
		if err == nil {
			w.send(env)
		}
	case envelope.TypedEnvelope:
		w.pushGlobals()
	}
}

// pushGlobals sends the typed-envelope globals snapshot. The first push
// counts as the guest's initial context.
func (w *Widget) pushGlobals() {
	hostCtx := w.session.Context()
	globals := map[string]interface{}{
		"theme":       hostCtx.Theme,
		"locale":      hostCtx.Locale,
		"displayMode": string(hostCtx.DisplayMode),
		"maxHeight":   hostCtx.Viewport.MaxHeight,
	}
	if w.toolInput != nil {
		globals["toolInput"] = w.toolInput
	}
	if w.toolOutput != nil {
		globals["toolOutput"] = w.toolOutput
	}
	if state := w.session.PersistedState(); state != nil {
		globals["widgetState"] = state
	}
	env, err := envelope.NewNotification(envelope.TypeSetGlobals,
		map[string]interface{}{"globals": globals})
	if err != nil {
		return
	}
	w.send(env)
	w.session.MarkContextPushed()
}

// callTool delegates a tool invocation under the bridge-wide deadline.
func (w *Widget) callTool(toolName string, params []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.bridge.config.CallTimeout)
	defer cancel()
	return w.bridge.proxies.CallTool(ctx, w.serverID, toolName, params)
}

// terminate moves the session to its terminal state and tears down the
// sandbox. The first failure message wins.
func (w *Widget) terminate(err error) {
	message := "session failed"
	if be := errors.AsBridgeError(err); be != nil {
		if e, ok := be.(*errors.Error); ok {
			message = e.Message()
		} else {
			message = be.Error()
		}
	} else if err != nil {
		message = err.Error()
	}

	w.session.Fail(message)
	w.logger.Error("session errored", map[string]interface{}{"message": message})
	if w.bridge.hooks.SessionErrored != nil {
		w.bridge.hooks.SessionErrored(w.session.ID(), message)
	}
	w.teardown(err)
}

// Close destroys the session. Idempotent.
func (w *Widget) Close() {
	w.teardown(errors.New(errors.CodeSessionClosed, "session closed",
		errors.WithWidget(w.session.ID())))
}

func (w *Widget) teardown(cause error) {
	w.closeOnce.Do(func() {
		w.pendings.RejectAll(cause)
		if w.handle != nil {
			w.handle.Close()
			w.bridge.host.Release(w.handle)
		}
		w.bridge.overlay.Release(w.session.ID())
		w.bridge.forget(w.session.ID())
		w.bridge.tracer.EndSessionSpan(w.span,
			w.session.Lifecycle().String(), w.session.ErrMessage())
	})
}

// hostCapabilities reports which delegated operations this host backs.
func (w *Widget) hostCapabilities() map[string]bool {
	caps := w.bridge.caps
	return map[string]bool{
		"toolCalls":     caps.CallTool != nil,
		"resourceReads": caps.ReadResource != nil,
		"openLinks":     caps.OpenLink != nil,
		"followUps":     caps.SendFollowUp != nil,
	}
}
