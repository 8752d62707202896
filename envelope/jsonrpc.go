package envelope

import (
	"encoding/json"
	"fmt"
)

// Guest-to-host methods of the JSON-RPC Apps convention.
const (
	MethodInitialize    = "ui/initialize"
	MethodToolsCall     = "tools/call"
	MethodResourcesRead = "resources/read"
	MethodOpenLink      = "ui/open-link"
	MethodMessage       = "ui/message"
	MethodInitialized   = "ui/notifications/initialized"
	MethodSizeChange    = "ui/size-change"
	MethodLogMessage    = "notifications/message"
)

// Host-to-guest notifications of the JSON-RPC Apps convention.
const (
	MethodToolInput          = "ui/notifications/tool-input"
	MethodToolResult         = "ui/notifications/tool-result"
	MethodHostContextChanged = "ui/notifications/host-context-changed"
)

// JSONRPCCodec speaks JSON-RPC 2.0 over the sandbox boundary.
type JSONRPCCodec struct{}

// NewJSONRPCCodec returns the JSON-RPC Apps codec.
func NewJSONRPCCodec() *JSONRPCCodec {
	return &JSONRPCCodec{}
}

// Protocol returns JSONRPCApps.
func (c *JSONRPCCodec) Protocol() Protocol {
	return JSONRPCApps
}

// jsonrpcWire is the superset wire shape of all JSON-RPC message kinds.
type jsonrpcWire struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Encode serializes env as a JSON-RPC 2.0 object.
func (c *JSONRPCCodec) Encode(env *Envelope) ([]byte, error) {
	wire := jsonrpcWire{JSONRPC: "2.0"}

	switch env.Kind {
	case KindRequest:
		if env.ID.IsZero() {
			return nil, fmt.Errorf("%w: request without id", ErrMalformed)
		}
		wire.ID = json.RawMessage(env.ID)
		wire.Method = env.Method
		wire.Params = env.Params
	case KindNotification:
		wire.Method = env.Method
		wire.Params = env.Params
	case KindResponse:
		if env.ID.IsZero() {
			return nil, fmt.Errorf("%w: response without id", ErrMalformed)
		}
		wire.ID = json.RawMessage(env.ID)
		if env.Err != nil {
			wire.Error = env.Err
		} else {
			wire.Result = env.Result
			if wire.Result == nil {
				wire.Result = json.RawMessage(`{}`)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, env.Kind)
	}

	return json.Marshal(wire)
}

// Decode parses a JSON-RPC 2.0 object and classifies it.
func (c *JSONRPCCodec) Decode(data []byte) (*Envelope, error) {
	var wire jsonrpcWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if wire.JSONRPC != "2.0" {
		return nil, fmt.Errorf("%w: jsonrpc must be \"2.0\"", ErrMalformed)
	}

	id := ID(wire.ID)
	hasID := !id.IsZero()
	hasMethod := wire.Method != ""

	switch {
	case hasMethod && hasID:
		return &Envelope{Kind: KindRequest, ID: id, Method: wire.Method, Params: wire.Params}, nil
	case hasMethod:
		return &Envelope{Kind: KindNotification, Method: wire.Method, Params: wire.Params}, nil
	case hasID:
		env := &Envelope{Kind: KindResponse, ID: id}
		if wire.Error != nil {
			env.Err = wire.Error
		} else {
			env.Result = wire.Result
		}
		return env, nil
	default:
		return nil, fmt.Errorf("%w: neither method nor id present", ErrMalformed)
	}
}
