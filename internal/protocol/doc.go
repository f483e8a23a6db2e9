// Package protocol defines the relay wire protocol: the inbound frame
// envelope, the outbound notification types, and the error texts clients
// depend on.
//
// Frames are single JSON objects over a persistent WebSocket. Inbound
// frames beyond the routing fields are opaque to the server; relay kinds
// are forwarded verbatim with the sender identity injected.
package protocol
