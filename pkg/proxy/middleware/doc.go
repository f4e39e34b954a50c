// Package middleware provides the HTTP middleware shared by the signaling
// server and the capturing proxy.
//
// # Middleware Chain
//
// pkg/server assembles the chain in this order:
//
//	handler = Recovery(Logging(RequestID(CORS(handler))))
//
// Order (innermost to outermost):
//  1. CORS: Add Cross-Origin Resource Sharing headers, answer preflights
//  2. RequestID: Generate or propagate X-Request-ID
//  3. Logging: Log method, path, status and latency
//  4. Recovery: Recover from panics and return a JSON 500
//
// TimeoutMiddleware is applied per route to admin endpoints only. Proxied
// traffic is bounded by the upstream transport timeouts, and WebSocket
// connections manage their own deadlines.
//
// # WebSocket Upgrades
//
// Every wrapper installed around the response writer supports
// http.Hijacker and Unwrap, so signaling and proxied WebSocket upgrades
// pass through the chain untouched.
//
// # Request ID
//
// RequestIDMiddleware accepts a client supplied X-Request-ID or generates a
// UUID v4. The ID is stored with logging.WithRequestID, so every log line
// written with the request context carries it.
package middleware
