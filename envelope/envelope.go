package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrMalformed       = errors.New("malformed envelope")
	ErrUnknownProtocol = errors.New("unknown protocol")
)

// Protocol identifies the wire convention a guest speaks.
type Protocol string

const (
	// JSONRPCApps is the JSON-RPC 2.0 convention (MCP Apps).
	JSONRPCApps Protocol = "jsonrpc-apps"

	// TypedEnvelope is the typed {type,...} convention (OpenAI Apps).
	TypedEnvelope Protocol = "typed-envelope"
)

// String returns the protocol name.
func (p Protocol) String() string {
	return string(p)
}

// Kind classifies an envelope.
type Kind int

const (
	// KindRequest expects exactly one Response with the same id.
	KindRequest Kind = iota

	// KindResponse answers a Request.
	KindResponse

	// KindNotification expects no reply.
	KindNotification
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// ID is an opaque correlation id (JSON string or number), preserved
// byte-for-byte so the guest's id is always echoed back unchanged.
type ID json.RawMessage

// StringID builds an ID from a string.
func StringID(s string) ID {
	b, _ := json.Marshal(s)
	return ID(b)
}

// NumberID builds an ID from an integer.
func NumberID(n int64) ID {
	b, _ := json.Marshal(n)
	return ID(b)
}

// IsZero reports whether the id is absent.
func (id ID) IsZero() bool {
	return len(id) == 0 || string(id) == "null"
}

// Key returns the normalized map key for the id.
func (id ID) Key() string {
	return string(bytes.TrimSpace([]byte(id)))
}

// Equal reports whether two ids correlate.
func (id ID) Equal(other ID) bool {
	return id.Key() == other.Key()
}

// Error is a structured wire error.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("wire error %d: %s", e.Code, e.Message)
	}
	return e.Message
}

// Standard JSON-RPC 2.0 error codes, plus the generic execution failure
// code used by the Apps convention.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeExecutionError = -32000
)

// Envelope is one message unit exchanged across the sandbox boundary.
// Params is set on requests and notifications, Result or Err on responses.
type Envelope struct {
	Kind   Kind
	ID     ID
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Err    *Error
}

// NewRequest builds a request envelope. params may be nil.
func NewRequest(id ID, method string, params interface{}) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindRequest, ID: id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope. params may be nil.
func NewNotification(method string, params interface{}) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: KindNotification, Method: method, Params: raw}, nil
}

// NewResult builds a success response for the given request id.
func NewResult(id ID, result interface{}) (*Envelope, error) {
	raw, err := marshalParams(result)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	return &Envelope{Kind: KindResponse, ID: id, Result: raw}, nil
}

// NewError builds an error response for the given request id.
func NewError(id ID, code int, message string) *Envelope {
	return &Envelope{
		Kind: KindResponse,
		ID:   id,
		Err:  &Error{Code: code, Message: message},
	}
}

// IsRequest reports whether the envelope is a request.
func (e *Envelope) IsRequest() bool { return e.Kind == KindRequest }

// IsResponse reports whether the envelope is a response.
func (e *Envelope) IsResponse() bool { return e.Kind == KindResponse }

// IsNotification reports whether the envelope is a notification.
func (e *Envelope) IsNotification() bool { return e.Kind == KindNotification }

// UnmarshalParams decodes the params into v.
func (e *Envelope) UnmarshalParams(v interface{}) error {
	if len(e.Params) == 0 {
		return fmt.Errorf("%w: missing params", ErrMalformed)
	}
	return json.Unmarshal(e.Params, v)
}

// Codec translates between Envelope and one wire family.
type Codec interface {
	// Protocol identifies the wire family this codec speaks.
	Protocol() Protocol

	// Encode serializes an envelope to wire bytes.
	Encode(env *Envelope) ([]byte, error)

	// Decode parses wire bytes into an envelope.
	// Malformed input returns an error wrapping ErrMalformed; it never panics.
	Decode(data []byte) (*Envelope, error)
}

// ForProtocol returns the codec for a protocol tag.
func ForProtocol(p Protocol) (Codec, error) {
	switch p {
	case JSONRPCApps:
		return NewJSONRPCCodec(), nil
	case TypedEnvelope:
		return NewTypedCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, p)
	}
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return b, nil
}
