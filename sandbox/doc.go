// Package sandbox owns the boundary between the host and untrusted
// widget content.
//
// # Overview
//
// Widget HTML runs inside a double-frame harness: an outer document with
// a restrictive sandbox attribute and a CSP derived from the content
// collaborator's hints, embedding the widget markup via srcdoc. The
// harness relays the guest's postMessage traffic to the host over a
// WebSocket authenticated by a one-time token, so one guest window maps
// to exactly one connection.
//
// # Source filtering
//
// A Handle accepts a frame only from windows it registered itself (the
// inline window, plus an optional modal window for overlay
// presentations). Deliveries from any other source are silently dropped;
// ownership is never inferred from message content.
//
// # Load failure
//
// A guest that never connects within the load deadline is a failed load:
// the handle reports "sandbox failed to load" and the session is
// terminal. There are no retries; the surrounding UI builds a new session
// to try again.
package sandbox
