// Package health provides liveness and readiness endpoints.
//
// Both servers mount the endpoints. The signaling server registers a check
// that it is not shutting down; the proxy registers one per configured
// upstream target (a TCP dial) and one for the traffic archive when it is
// enabled. Readiness returns 503 while any check fails, so a load balancer
// stops routing to an instance whose upstreams are gone.
package health
