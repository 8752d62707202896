package envelope

import (
	"encoding/json"
	"fmt"
)

// Guest-to-host types of the typed-envelope (OpenAI Apps) convention.
const (
	TypeResize             = "openai:resize"
	TypeSetWidgetState     = "openai:setWidgetState"
	TypeCallTool           = "openai:callTool"
	TypeSendFollowup       = "openai:sendFollowup"
	TypeRequestDisplayMode = "openai:requestDisplayMode"
	TypeOpenExternal       = "openai:openExternal"
	TypeRequestModal       = "openai:requestModal"
)

// Host-to-guest types of the typed-envelope convention.
const (
	TypeSetGlobals       = "openai:set_globals"
	TypePushWidgetState  = "openai:pushWidgetState"
	TypeCallToolResponse = "openai:callTool:response"
	TypeToolResponse     = "openai:tool_response"
)

// TypedCodec speaks the {type, ...fields} convention. The type string acts
// as the method name and payload fields live at the top level of the
// object rather than under a params member. Only callTool and its response
// carry a requestId; every other type is a notification.
type TypedCodec struct{}

// NewTypedCodec returns the typed-envelope codec.
func NewTypedCodec() *TypedCodec {
	return &TypedCodec{}
}

// Protocol returns TypedEnvelope.
func (c *TypedCodec) Protocol() Protocol {
	return TypedEnvelope
}

// Encode serializes env as a typed object, flattening params to the top level.
func (c *TypedCodec) Encode(env *Envelope) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	method := env.Method

	switch env.Kind {
	case KindRequest:
		if env.ID.IsZero() {
			return nil, fmt.Errorf("%w: request without requestId", ErrMalformed)
		}
		if err := flatten(fields, env.Params); err != nil {
			return nil, err
		}
		fields["requestId"] = json.RawMessage(env.ID)

	case KindNotification:
		if err := flatten(fields, env.Params); err != nil {
			return nil, err
		}

	case KindResponse:
		if env.ID.IsZero() {
			return nil, fmt.Errorf("%w: response without requestId", ErrMalformed)
		}
		fields["requestId"] = json.RawMessage(env.ID)
		if env.Err != nil {
			msg, err := json.Marshal(env.Err.Message)
			if err != nil {
				return nil, err
			}
			fields["error"] = msg
		} else if env.Result != nil {
			fields["result"] = env.Result
		}
		if method == "" {
			method = TypeCallToolResponse
		}

	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, env.Kind)
	}

	if method == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	typ, err := json.Marshal(method)
	if err != nil {
		return nil, err
	}
	fields["type"] = typ

	return json.Marshal(fields)
}

// Decode parses a typed object and classifies it by its type string.
func (c *TypedCodec) Decode(data []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var method string
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &method); err != nil {
			return nil, fmt.Errorf("%w: type must be a string", ErrMalformed)
		}
	}
	if method == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	delete(fields, "type")

	id := ID(fields["requestId"])
	delete(fields, "requestId")

	switch method {
	case TypeCallTool:
		if id.IsZero() {
			return nil, fmt.Errorf("%w: %s without requestId", ErrMalformed, method)
		}
		params, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: KindRequest, ID: id, Method: method, Params: params}, nil

	case TypeCallToolResponse:
		if id.IsZero() {
			return nil, fmt.Errorf("%w: %s without requestId", ErrMalformed, method)
		}
		env := &Envelope{Kind: KindResponse, ID: id, Method: method}
		if raw, ok := fields["error"]; ok {
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				return nil, fmt.Errorf("%w: error must be a string", ErrMalformed)
			}
			env.Err = &Error{Message: msg}
		} else {
			env.Result = fields["result"]
		}
		return env, nil

	default:
		// Everything else is fire-and-forget, including resize, state
		// updates, display-mode asks and follow-up sends.
		params, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: KindNotification, Method: method, Params: params}, nil
	}
}

// flatten merges a params object into the top-level field map.
func flatten(dst map[string]json.RawMessage, params json.RawMessage) error {
	if len(params) == 0 {
		return nil
	}
	var src map[string]json.RawMessage
	if err := json.Unmarshal(params, &src); err != nil {
		return fmt.Errorf("%w: params must be an object: %v", ErrMalformed, err)
	}
	for k, v := range src {
		dst[k] = v
	}
	return nil
}
