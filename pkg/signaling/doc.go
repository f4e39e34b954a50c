// Package signaling defines the wire protocol shared by the signaling server
// packages: the JSON message envelope, event names, payload shapes, the Sink
// abstraction for a connection's outbound queue, and the error taxonomy.
//
// The server itself is layered bottom-up:
//
//   - registry: live connections and their attributes
//   - rooms: two-member rooms built on the registry
//   - relay: inbound message routing and peer-to-peer forwarding
//   - wsserver: the WebSocket transport
//
// Every frame is one JSON object:
//
//	{"type": "call-offer", "to": "<connection id>", "data": {...}}
//
// Relay payloads are opaque; the server never inspects SDP, chat text or
// file contents.
package signaling
