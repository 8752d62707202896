package errors

import (
	"fmt"
)

// BridgeError is the interface for all structured errors in the bridge.
// It extends the standard error interface with the classification the
// adapters need to decide how a failure propagates.
type BridgeError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() Code

	// Category returns the propagation class.
	Category() Category

	// WireCode returns the JSON-RPC error code for guest-visible errors.
	WireCode() int

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of BridgeError.
type Error struct {
	code     Code
	category Category
	message  string
	cause    error
	widgetID string
	method   string
}

var _ BridgeError = (*Error)(nil)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Category returns the propagation class.
func (e *Error) Category() Category {
	return e.category
}

// WireCode returns the JSON-RPC error code.
func (e *Error) WireCode() int {
	return e.code.WireCode()
}

// Message returns the message without the cause chain, which is what
// crosses the sandbox boundary.
func (e *Error) Message() string {
	if e.cause != nil && e.message == "" {
		return e.cause.Error()
	}
	return e.message
}

// WidgetID returns the session the error is attributed to, if any.
func (e *Error) WidgetID() string {
	return e.widgetID
}

// Method returns the wire method involved, if any.
func (e *Error) Method() string {
	return e.method
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Option configures an Error.
type Option func(*Error)

// WithCause attaches an underlying error.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithWidget attributes the error to a widget session.
func WithWidget(id string) Option {
	return func(e *Error) { e.widgetID = id }
}

// WithMethod records the wire method involved.
func WithMethod(method string) Option {
	return func(e *Error) { e.method = method }
}

// WithCategory overrides the code's default category.
func WithCategory(c Category) Option {
	return func(e *Error) { e.category = c }
}

// New creates a structured error.
func New(code Code, message string, opts ...Option) *Error {
	e := &Error{
		code:     code,
		category: code.DefaultCategory(),
		message:  message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a structured error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}
