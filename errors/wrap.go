package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error
// chain. If err is nil, Wrap returns nil. An existing BridgeError keeps
// its code and category; context deadline/cancel errors classify as
// timeout and session-closed; anything else becomes an internal error.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		wrapped := &Error{
			code:     bridgeErr.code,
			category: bridgeErr.category,
			message:  message,
			cause:    err,
			widgetID: bridgeErr.widgetID,
			method:   bridgeErr.method,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(CodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(CodeSessionClosed, message, append(opts, WithCause(err))...)
	}

	return New(CodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error under a specific error code.
func WrapWithCode(err error, code Code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsBridgeError extracts a BridgeError from an error chain, or nil.
func AsBridgeError(err error) BridgeError {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr
	}
	return nil
}

// Is reports whether any error in the chain has the given code.
func Is(err error, code Code) bool {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.code == code
	}
	return false
}

// Terminal reports whether the error ends the session.
func Terminal(err error) bool {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.category.TerminatesSession()
	}
	return false
}
