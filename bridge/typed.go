package bridge

import (
	"context"
	"encoding/json"

	"github.com/hostbridge/widgetkit/envelope"
	"github.com/hostbridge/widgetkit/errors"
	"github.com/hostbridge/widgetkit/session"
)

// handleTyped routes one guest message of the typed-envelope convention.
// Only callTool is a request; everything else is fire-and-forget, so
// failures on those paths are logged rather than surfaced.
func (w *Widget) handleTyped(env *envelope.Envelope) {
	if env.IsRequest() {
		switch env.Method {
		case envelope.TypeCallTool:
			go w.guard(func() { w.typedCallTool(env) })
		default:
			// Unknown requests get a string error on the response shape
			// the guest is listening for.
			w.send(&envelope.Envelope{
				Kind: envelope.KindResponse,
				ID:   env.ID,
				Err:  &envelope.Error{Message: "Unknown type: " + env.Method},
			})
		}
		return
	}

	switch env.Method {
	case envelope.TypeResize:
		w.typedResize(env)
	case envelope.TypeSetWidgetState:
		w.typedSetWidgetState(env)
	case envelope.TypeRequestDisplayMode:
		w.typedRequestDisplayMode(env)
	case envelope.TypeOpenExternal:
		w.typedOpenExternal(env)
	case envelope.TypeSendFollowup:
		w.typedSendFollowup(env)
	case envelope.TypeRequestModal:
		if w.bridge.hooks.ModalRequested != nil {
			w.bridge.hooks.ModalRequested(w.session.ID())
		}
	default:
		w.logger.Debug("unknown type", map[string]interface{}{"type": env.Method})
	}
}

// typedCallTool delegates a tool invocation and replies on the
// callTool:response shape, echoing the guest's requestId.
func (w *Widget) typedCallTool(env *envelope.Envelope) {
	var params struct {
		ToolName string          `json:"toolName"`
		Name     string          `json:"name"`
		Params   json.RawMessage `json:"params"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.send(typedError(env.ID, "Missing tool name"))
		return
	}
	toolName := params.ToolName
	if toolName == "" {
		toolName = params.Name
	}
	if toolName == "" {
		w.send(typedError(env.ID, "Missing tool name"))
		return
	}

	result, err := w.callTool(toolName, params.Params)
	if err != nil {
		message := err.Error()
		if e, ok := errors.AsBridgeError(err).(*errors.Error); ok {
			message = e.Message()
		}
		w.send(typedError(env.ID, message))
		return
	}

	w.send(&envelope.Envelope{
		Kind:   envelope.KindResponse,
		ID:     env.ID,
		Method: envelope.TypeCallToolResponse,
		Result: json.RawMessage(result),
	})
}

// typedResize records a guest height report.
func (w *Widget) typedResize(env *envelope.Envelope) {
	var params struct {
		Height int `json:"height"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.logger.Dropped("resize params", env.Params)
		return
	}
	if clamped, changed := w.session.ReportHeight(params.Height); changed {
		if w.bridge.hooks.HeightChanged != nil {
			w.bridge.hooks.HeightChanged(w.session.ID(), clamped)
		}
	}
}

// typedSetWidgetState stores the guest's opaque state blob verbatim.
func (w *Widget) typedSetWidgetState(env *envelope.Envelope) {
	var params struct {
		State       json.RawMessage `json:"state"`
		WidgetState json.RawMessage `json:"widgetState"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.logger.Dropped("widget state params", env.Params)
		return
	}
	state := params.State
	if state == nil {
		state = params.WidgetState
	}
	w.session.SetPersistedState(state)
}

// typedRequestDisplayMode asks for a presentation change. The overlay
// slot arbitrates; a granted overlay mode demotes its previous holder.
func (w *Widget) typedRequestDisplayMode(env *envelope.Envelope) {
	var params struct {
		Mode string `json:"mode"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.logger.Dropped("display mode params", env.Params)
		return
	}

	mode, ok := session.ParseDisplayMode(params.Mode)
	if !ok {
		w.logger.Warn("unknown display mode", map[string]interface{}{"mode": params.Mode})
		return
	}
	w.bridge.grantMode(w, mode)
}

// typedOpenExternal opens an external URL. With no reply channel, a
// failure is only logged.
func (w *Widget) typedOpenExternal(env *envelope.Envelope) {
	var params struct {
		Href string `json:"href"`
		URL  string `json:"url"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.logger.Dropped("open external params", env.Params)
		return
	}
	url := params.Href
	if url == "" {
		url = params.URL
	}

	if err := w.bridge.proxies.OpenLink(context.Background(), url); err != nil {
		w.logger.Warn("open external failed", map[string]interface{}{"error": err.Error()})
	}
}

// typedSendFollowup forwards guest-authored text to the conversation.
func (w *Widget) typedSendFollowup(env *envelope.Envelope) {
	var params struct {
		Prompt  json.RawMessage `json:"prompt"`
		Message json.RawMessage `json:"message"`
	}
	if err := env.UnmarshalParams(&params); err != nil {
		w.logger.Dropped("followup params", env.Params)
		return
	}
	payload := params.Prompt
	if payload == nil {
		payload = params.Message
	}

	if err := w.bridge.proxies.SendFollowUp(context.Background(), payload); err != nil {
		w.logger.Warn("followup failed", map[string]interface{}{"error": err.Error()})
	}
}

// typedError builds a response carrying a bare message string, which is
// all the typed convention can express.
func typedError(id envelope.ID, message string) *envelope.Envelope {
	return &envelope.Envelope{
		Kind:   envelope.KindResponse,
		ID:     id,
		Method: envelope.TypeCallToolResponse,
		Err:    &envelope.Error{Message: message},
	}
}
