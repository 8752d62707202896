package errors

// Category classifies errors by how they propagate across the bridge.
type Category string

const (
	// CategoryTransport marks malformed or unattributable input. The
	// offending message is dropped and logged; nothing reaches the guest.
	CategoryTransport Category = "transport"

	// CategoryRecoverable marks per-call failures surfaced to the guest
	// as structured error responses. The session remains usable.
	CategoryRecoverable Category = "recoverable"

	// CategoryTerminal marks failures that end the session. The host
	// renders an error banner; recovery requires a new session.
	CategoryTerminal Category = "terminal"
)

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// SurfacesToGuest reports whether errors in this category are sent to the
// guest as wire error responses.
func (c Category) SurfacesToGuest() bool {
	return c == CategoryRecoverable
}

// TerminatesSession reports whether errors in this category are fatal to
// the session.
func (c Category) TerminatesSession() bool {
	return c == CategoryTerminal
}

// Code identifies a specific failure type within a category.
type Code string

const (
	// Transport errors, dropped at the boundary.
	CodeMalformedEnvelope Code = "MALFORMED_ENVELOPE" // Undecodable or wrong envelope family
	CodeUnknownWindow     Code = "UNKNOWN_WINDOW"     // Sender is not a window the host created

	// Recoverable errors, surfaced to the guest.
	CodeUnknownMethod         Code = "UNKNOWN_METHOD"         // No handler for the requested method
	CodeCapabilityUnsupported Code = "CAPABILITY_UNSUPPORTED" // Host was not given this capability
	CodeCapabilityFailed      Code = "CAPABILITY_FAILED"      // Delegated host call threw
	CodeInvalidInput          Code = "INVALID_INPUT"          // Request params failed validation
	CodeTimeout               Code = "TIMEOUT"                // Pending call exceeded its deadline

	// Terminal errors.
	CodeSandboxFailed      Code = "SANDBOX_FAILED"      // Sandbox frame failed to load
	CodeContentUnavailable Code = "CONTENT_UNAVAILABLE" // Widget HTML could not be resolved
	CodeSessionClosed      Code = "SESSION_CLOSED"      // Session was torn down

	// CodeInternal covers bugs and unexpected states.
	CodeInternal Code = "INTERNAL"
)

// String returns the code name.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the category a code belongs to.
func (c Code) DefaultCategory() Category {
	switch c {
	case CodeMalformedEnvelope, CodeUnknownWindow:
		return CategoryTransport
	case CodeUnknownMethod, CodeCapabilityUnsupported, CodeCapabilityFailed,
		CodeInvalidInput, CodeTimeout:
		return CategoryRecoverable
	case CodeSandboxFailed, CodeContentUnavailable, CodeSessionClosed:
		return CategoryTerminal
	default:
		return CategoryRecoverable
	}
}

// JSON-RPC wire codes used when a recoverable error crosses the boundary.
const (
	wireParseError     = -32700
	wireInvalidParams  = -32602
	wireMethodNotFound = -32601
	wireInternalError  = -32603
	wireExecutionError = -32000
)

// WireCode returns the JSON-RPC error code for this failure type. The
// typed-envelope adapter ignores it and sends the message string alone.
func (c Code) WireCode() int {
	switch c {
	case CodeMalformedEnvelope:
		return wireParseError
	case CodeUnknownMethod, CodeCapabilityUnsupported:
		return wireMethodNotFound
	case CodeInvalidInput:
		return wireInvalidParams
	case CodeCapabilityFailed, CodeTimeout:
		return wireExecutionError
	default:
		return wireInternalError
	}
}
