// Package capability exposes sensitive host functions to sandboxed
// guests under controlled error semantics.
//
// The host supplies at most four collaborators: tool invocation, resource
// reading, link opening and follow-up forwarding. A missing collaborator
// is reported to the guest as capability-unsupported; a collaborator that
// fails is reported as capability-failure with the underlying message.
// Neither is fatal to the session.
package capability

import (
	"context"
	"encoding/json"
	"time"
)

// ToolCaller invokes a tool on behalf of the guest. It may fail.
type ToolCaller func(ctx context.Context, serverID, toolName string, params json.RawMessage) (json.RawMessage, error)

// ResourceReader fetches a resource by URI. The returned value is the
// collaborator's outer envelope: {"content":{"contents":[...]}}.
type ResourceReader func(ctx context.Context, serverID, uri string) (json.RawMessage, error)

// LinkOpener opens an external URL in a new top-level browsing context
// with no back-reference to the opener.
type LinkOpener func(ctx context.Context, url string) error

// FollowUpSink forwards a guest-authored message to the surrounding
// conversation.
type FollowUpSink func(ctx context.Context, text string) error

// Set bundles the collaborators a host grants to its widgets. Any entry
// may be nil, which surfaces as capability-unsupported to the guest.
type Set struct {
	CallTool     ToolCaller
	ReadResource ResourceReader
	OpenLink     LinkOpener
	SendFollowUp FollowUpSink
}

// DefaultCallTimeout bounds a single delegated tool call. The policy is
// uniform across both protocol adapters.
const DefaultCallTimeout = 30 * time.Second

// Guest-visible error messages. The JSON-RPC adapter pairs them with the
// wire codes from the errors package; the typed adapter sends them alone.
const (
	msgToolsUnsupported     = "Tool calls not supported"
	msgResourcesUnsupported = "Resource reads not supported"
	msgLinksUnsupported     = "Opening links not supported"
	msgFollowUpUnsupported  = "Follow-up messages not supported"
	msgMissingURL           = "Missing URL"
)
