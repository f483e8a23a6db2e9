// Package signaling is the WebSocket surface of the relay: it upgrades
// connections, decodes inbound frames, dispatches them into the relay
// core, and runs the liveness probe loop that evicts unresponsive
// transports.
package signaling
