package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"securemeet/relaygate/pkg/proxy/types"
)

// Upstream failure kinds.
const (
	KindTimeout  = "timeout"
	KindRefused  = "refused"
	KindCanceled = "canceled"
	KindError    = "error"
)

// UpstreamError reports a failed round trip to a service's upstream.
type UpstreamError struct {
	Service string
	Target  string
	Kind    string
	Cause   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error [service=%s, target=%s, kind=%s]: %v", e.Service, e.Target, e.Kind, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError classifies cause and wraps it.
func NewUpstreamError(service, target string, cause error) *UpstreamError {
	return &UpstreamError{Service: service, Target: target, Kind: upstreamErrorKind(cause), Cause: cause}
}

func upstreamErrorKind(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	default:
		return KindError
	}
}

// ToErrorResponse converts the failure into the body sent to the client:
// 504 for timeouts and 502 for everything else.
func (e *UpstreamError) ToErrorResponse() *types.ErrorResponse {
	if e.Kind == KindTimeout {
		return types.NewGatewayTimeoutError(fmt.Sprintf("upstream for service %q timed out", e.Service))
	}
	return types.NewBadGatewayError(fmt.Sprintf("upstream for service %q is unavailable", e.Service))
}
