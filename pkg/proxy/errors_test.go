package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewUpstreamError(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}

	tests := []struct {
		name       string
		cause      error
		wantKind   string
		wantStatus int
	}{
		{"deadline", fmt.Errorf("round trip: %w", context.DeadlineExceeded), KindTimeout, http.StatusGatewayTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, KindTimeout, http.StatusGatewayTimeout},
		{"refused", refused, KindRefused, http.StatusBadGateway},
		{"canceled", context.Canceled, KindCanceled, http.StatusBadGateway},
		{"other", errors.New("tls: bad certificate"), KindError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewUpstreamError("chat", "http://localhost:4200", tt.cause)
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.wantKind)
			}
			if !errors.Is(err, tt.cause) {
				t.Error("expected cause to be unwrappable")
			}
			if got := err.ToErrorResponse().Error.HTTPStatusCode(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}
