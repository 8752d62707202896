// Package errors provides structured errors for the widget bridge.
//
// # Overview
//
// Every failure in the bridge falls into one of five classes: transport
// (malformed envelopes, dropped and logged), capability-unsupported and
// capability-failure (surfaced to the guest as structured error
// responses), sandbox-failure (terminal for the session) and timeout
// (rejects a single pending call). The Category of an error is the single
// source of truth for how it propagates: whether it crosses the sandbox
// boundary as a wire error, and whether it ends the session.
//
// # Usage
//
//	err := errors.New(errors.CodeCapabilityUnsupported, "Tool calls not supported")
//	if errors.Is(err, errors.CodeCapabilityUnsupported) {
//	    // reply with err.WireCode() == -32601
//	}
//
// Wrapping preserves the original classification:
//
//	err = errors.Wrap(err, "tools/call failed")
package errors
