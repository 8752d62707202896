package capability

import (
	"context"
	"encoding/json"

	"github.com/hostbridge/widgetkit/errors"
	"github.com/hostbridge/widgetkit/logging"
	"github.com/hostbridge/widgetkit/telemetry"
)

// Proxies mediates between guest requests and the host's collaborator
// set, translating host-side success and failure into the error taxonomy
// the adapters put on the wire.
type Proxies struct {
	set    Set
	logger *logging.Logger
	tracer *telemetry.Tracer
}

// NewProxies builds the proxy layer. logger and tracer may be nil.
func NewProxies(set Set, logger *logging.Logger, tracer *telemetry.Tracer) *Proxies {
	if logger == nil {
		logger = logging.New()
	}
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	return &Proxies{set: set, logger: logger.WithComponent("capability"), tracer: tracer}
}

// CallTool delegates a guest tool invocation. The context should already
// carry the per-call deadline; CallTool adds DefaultCallTimeout if not.
func (p *Proxies) CallTool(ctx context.Context, serverID, toolName string, params json.RawMessage) (json.RawMessage, error) {
	if p.set.CallTool == nil {
		return nil, errors.New(errors.CodeCapabilityUnsupported, msgToolsUnsupported)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	ctx, span := p.tracer.StartCapabilitySpan(ctx, "tools/call", serverID)
	result, err := p.set.CallTool(ctx, serverID, toolName, params)
	p.tracer.EndCapabilitySpan(span, telemetry.CapabilitySpanOptions{Tool: toolName}, err)

	if err != nil {
		p.logger.Warn("tool call failed", map[string]interface{}{
			"server": serverID, "tool": toolName, "error": err.Error(),
		})
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.CodeTimeout, "Tool call timed out", errors.WithCause(err))
		}
		return nil, errors.New(errors.CodeCapabilityFailed, err.Error(), errors.WithCause(err))
	}
	return result, nil
}

// resourceEnvelope is the collaborator's outer wrapper around resource
// contents.
type resourceEnvelope struct {
	Content json.RawMessage `json:"content"`
}

// ReadResource delegates a guest resource read and unwraps the
// collaborator's outer envelope to the {contents:[...]} shape guests
// expect.
func (p *Proxies) ReadResource(ctx context.Context, serverID, uri string) (json.RawMessage, error) {
	if p.set.ReadResource == nil {
		return nil, errors.New(errors.CodeCapabilityUnsupported, msgResourcesUnsupported)
	}

	ctx, span := p.tracer.StartCapabilitySpan(ctx, "resources/read", serverID)
	raw, err := p.set.ReadResource(ctx, serverID, uri)
	p.tracer.EndCapabilitySpan(span, telemetry.CapabilitySpanOptions{URI: uri}, err)

	if err != nil {
		return nil, errors.New(errors.CodeCapabilityFailed, err.Error(), errors.WithCause(err))
	}

	var outer resourceEnvelope
	if err := json.Unmarshal(raw, &outer); err == nil && len(outer.Content) > 0 {
		return outer.Content, nil
	}
	return raw, nil
}

// OpenLink validates and opens an external URL. The reply carries no
// payload beyond acknowledgement.
func (p *Proxies) OpenLink(ctx context.Context, url string) error {
	if url == "" {
		return errors.New(errors.CodeInvalidInput, msgMissingURL)
	}
	if p.set.OpenLink == nil {
		return errors.New(errors.CodeCapabilityUnsupported, msgLinksUnsupported)
	}
	if err := p.set.OpenLink(ctx, url); err != nil {
		return errors.New(errors.CodeCapabilityFailed, err.Error(), errors.WithCause(err))
	}
	return nil
}

// SendFollowUp extracts the user-facing text from the raw message payload
// and forwards it to the conversation. The payload is either a plain
// string or a content-block list whose first text-typed entry is taken.
func (p *Proxies) SendFollowUp(ctx context.Context, message json.RawMessage) error {
	if p.set.SendFollowUp == nil {
		return errors.New(errors.CodeCapabilityUnsupported, msgFollowUpUnsupported)
	}

	text, err := ExtractText(message)
	if err != nil {
		return err
	}
	if err := p.set.SendFollowUp(ctx, text); err != nil {
		return errors.New(errors.CodeCapabilityFailed, err.Error(), errors.WithCause(err))
	}
	return nil
}

// ExtractText pulls the user-facing text out of a follow-up payload.
func ExtractText(message json.RawMessage) (string, error) {
	if len(message) == 0 {
		return "", errors.New(errors.CodeInvalidInput, "Missing message")
	}

	var plain string
	if err := json.Unmarshal(message, &plain); err == nil {
		return plain, nil
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(message, &blocks); err == nil {
		for _, b := range blocks {
			if b.Type == "text" {
				return b.Text, nil
			}
		}
		return "", errors.New(errors.CodeInvalidInput, "No text content in message")
	}

	return "", errors.Newf(errors.CodeInvalidInput, "Unrecognized message payload: %s", truncate(string(message), 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
