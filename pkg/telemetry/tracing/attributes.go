package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Standard HTTP keys follow OpenTelemetry conventions;
// gateway-specific keys live under "relaygate.".
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPTarget     = "http.target"
	AttrHTTPStatusCode = "http.status_code"

	AttrService       = "relaygate.service"
	AttrUpstream      = "relaygate.upstream"
	AttrProtocol      = "relaygate.protocol"
	AttrRequestBytes  = "relaygate.request_bytes"
	AttrResponseBytes = "relaygate.response_bytes"
	AttrErrorKind     = "relaygate.error.kind"

	AttrErrorMessage = "error.message"
)

// ProxyRequestAttributes returns the start attributes for a forwarded
// request span.
func ProxyRequestAttributes(method, target, service, upstream, protocol string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPTarget, target),
		attribute.String(AttrService, service),
		attribute.String(AttrUpstream, upstream),
		attribute.String(AttrProtocol, protocol),
	)
}

// SetResponseAttributes records the outcome of a forwarded request.
func SetResponseAttributes(span trace.Span, status int, requestBytes, responseBytes int64) {
	span.SetAttributes(
		attribute.Int(AttrHTTPStatusCode, status),
		attribute.Int64(AttrRequestBytes, requestBytes),
		attribute.Int64(AttrResponseBytes, responseBytes),
	)
}

// SetUpstreamError marks span with the kind of upstream failure.
func SetUpstreamError(span trace.Span, kind string, err error) {
	span.SetAttributes(attribute.String(AttrErrorKind, kind))
	SetStatus(span, err)
}
