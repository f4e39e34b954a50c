// Package types defines the JSON error body returned by the proxy when it
// answers a request itself instead of forwarding it:
//
//	{"error": {"message": "...", "type": "bad_gateway", "code": "upstream_unavailable"}}
//
// Forwarded responses are passed through unchanged.
package types
