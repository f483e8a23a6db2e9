// Package relay owns the shared state triple of the signaling relay:
// the session directory, the room membership sets, and the identity to
// live-transport bindings used for delivery.
//
// All three maps are guarded by a single mutex on Core. Every mutation
// (message dispatch, connect/disconnect, liveness eviction, reap sweep,
// administrative delete) runs to completion under that lock, so no event
// ever observes the triple mid-update. Delivery to a transport is
// non-blocking best-effort and never feeds back as an error to the
// mutating path.
package relay
