// Package session tracks per-widget invocation state.
//
// # Overview
//
// One Session exists per tool-call id. It owns the widget lifecycle
// (Loading -> Ready -> Errored, with Errored terminal), the negotiated
// display mode, the clamped content height, the last-pushed host context
// snapshot and the guest's opaque persisted state.
//
// # Overlay exclusivity
//
// At most one session may hold picture-in-picture or fullscreen at a
// time. The Overlay registry is the only mutator of that slot: requesting
// an overlay mode atomically demotes the current holder to inline before
// granting, so the invariant holds across any interleaving of requests.
package session
