package bridge

import (
	"context"
	"encoding/json"

	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
)

// handleJSONRPC routes one guest request or notification of the JSON-RPC
// Apps convention.
func (w *Widget) handleJSONRPC(env *envelope.Envelope) {
	if env.IsNotification() {
		w.jsonrpcNotification(env)
		return
	}

	switch env.Method {
	case envelope.MethodInitialize:
		w.jsonrpcInitialize(env)
	case envelope.MethodToolsCall:
		// Delegated calls can take seconds; run them off the loop so
		// size changes and other traffic keep flowing. guard keeps a
		// panicking collaborator from escaping the session.
		go w.guard(func() { w.jsonrpcToolsCall(env) })
	case envelope.MethodResourcesRead:
		go w.guard(func() { w.jsonrpcResourcesRead(env) })
	case envelope.MethodOpenLink:
		w.jsonrpcOpenLink(env)
	case envelope.MethodMessage:
		w.jsonrpcMessage(env)
	default:
		w.replyError(env, errors.Newf(errors.CodeUnknownMethod,
			"Method not found: %s", env.Method))
	}
}

// jsonrpcNotification handles fire-and-forget guest messages.
func (w *Widget) jsonrpcNotification(env *envelope.Envelope) {
	switch env.Method {
	case envelope.MethodInitialized:
		if err := w.session.MarkReady(); err != nil {
			w.logger.Warn("late initialized", map[string]interface{}{"error": err.Error()})
			return
		}
		w.logger.Info("session ready")

	case envelope.MethodSizeChange:
		var params struct {
			Height int `json:"height"`
		}
		if err := env.UnmarshalParams(&params); err != nil {
			w.logger.Dropped("size-change params", env.Params)
			return
		}
		if clamped, changed := w.session.ReportHeight(params.Height); changed {
			if w.bridge.hooks.HeightChanged != nil {
				w.bridge.hooks.HeightChanged(w.session.ID(), clamped)
			}
		}

	case envelope.MethodLogMessage:
		var params struct {
			Level string          `json:"level"`
			Data  json.RawMessage `json:"data"`
		}
		if err := env.UnmarshalParams(&params); err != nil {
			w.logger.Dropped("log params", env.Params)
			return
		}
		w.logger.Info("guest log", map[string]interface{}{
			"level": params.Level, "data": string(params.Data),
		})

	default:
		// Unknown notifications are ignored; there is no reply channel
		// to report them on.
		w.logger.Debug("unknown notification", map[string]interface{}{"method": env.Method})
	}
}

// jsonrpcInitialize answers the handshake with the host's identity,
// capabilities and the initial context snapshot.
func (w *Widget) jsonrpcInitialize(env *envelope.Envelope) {
	result := map[string]interface{}{
		"protocolVersion": ProtocolVersion,
		"hostInfo": map[string]string{
			"name":    w.bridge.config.HostName,
			"version": w.bridge.config.HostVersion,
		},
		"hostCapabilities": w.hostCapabilities(),
		"hostContext":      w.session.Context(),
	}

	reply, err := envelope.NewResult(env.ID, result)
	if err != nil {
		w.replyError(env, errors.New(errors.CodeInternal, "internal error", errors.WithCause(err)))
		return
	}
	w.send(reply)

	// The snapshot in the result counts as the first push; the matching
	// changed notification is suppressed.
	w.session.MarkContextPushed()
}

// jsonrpcToolsCall delegates a tool invocation and replies with its
// result or failure.
func (w *Widget) jsonrpcToolsCall(env *envelope.Envelope) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := env.UnmarshalParams(&params); err != nil || params.Name == "" {
		w.replyError(env, errors.New(errors.CodeInvalidInput, "Missing tool name"))
		return
	}

	result, err := w.callTool(params.Name, params.Arguments)
	if err != nil {
		w.replyError(env, err)
		return
	}

	reply, err := envelope.NewResult(env.ID, json.RawMessage(result))
	if err != nil {
		w.replyError(env, errors.New(errors.CodeInternal, "internal error", errors.WithCause(err)))
		return
	}
	w.send(reply)
}

// jsonrpcResourcesRead delegates a resource read.
func (w *Widget) jsonrpcResourcesRead(env *envelope.Envelope) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := env.UnmarshalParams(&params); err != nil || params.URI == "" {
		w.replyError(env, errors.New(errors.CodeInvalidInput, "Missing resource URI"))
		return
	}

	result, err := w.bridge.proxies.ReadResource(context.Background(), w.serverID, params.URI)
	if err != nil {
		w.replyError(env, err)
		return
	}

	reply, err := envelope.NewResult(env.ID, result)
	if err != nil {
		w.replyError(env, errors.New(errors.CodeInternal, "internal error", errors.WithCause(err)))
		return
	}
	w.send(reply)
}

// jsonrpcOpenLink validates and opens an external URL. The success reply
// is an empty object.
func (w *Widget) jsonrpcOpenLink(env *envelope.Envelope) {
	var params struct {
		URL string `json:"url"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.replyError(env, errors.New(errors.CodeInvalidInput, "Missing URL"))
		return
	}

	if err := w.bridge.proxies.OpenLink(context.Background(), params.URL); err != nil {
		w.replyError(env, err)
		return
	}

	reply, _ := envelope.NewResult(env.ID, nil)
	w.send(reply)
}

// jsonrpcMessage forwards guest-authored text to the conversation.
func (w *Widget) jsonrpcMessage(env *envelope.Envelope) {
	var params struct {
		Message json.RawMessage `json:"message"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.replyError(env, errors.New(errors.CodeInvalidInput, "Missing message"))
		return
	}

	if err := w.bridge.proxies.SendFollowUp(context.Background(), params.Message); err != nil {
		w.replyError(env, err)
		return
	}

	reply, _ := envelope.NewResult(env.ID, nil)
	w.send(reply)
}

// replyError surfaces a failure to the guest as a structured error
// response. Terminal errors additionally end the session.
func (w *Widget) replyError(req *envelope.Envelope, err error) {
	be := errors.AsBridgeError(err)
	if be == nil {
		be = errors.New(errors.CodeInternal, "internal error", errors.WithCause(err))
	}

	message := be.Error()
	if e, ok := be.(*errors.Error); ok {
		message = e.Message()
	}

	w.send(envelope.NewError(req.ID, be.WireCode(), message))

	if be.Category().TerminatesSession() {
		w.terminate(be)
	}
}
