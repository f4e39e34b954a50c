package logging

import (
	"errors"
	"log/slog"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"email", "join from alice@example.com", "join from a***@example.com"},
		{"ipv4", "client 192.168.1.100 connected", "client 192.*.*.* connected"},
		{"bearer", "Authorization: Bearer eyJhbGciOi.abc", "Authorization: Bearer ***"},
		{"password", "dsn password=hunter2 host=db", "dsn password=*** host=db"},
		{"clean", "room 42 deleted", "room 42 deleted"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.in); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"sensitive key", slog.String("Authorization", "anything"), "***"},
		{"string value", slog.String("email", "bob@x.org"), "b***@x.org"},
		{"error value", slog.Any("error", errors.New("dial 10.0.0.7:4200 refused")), "dial 10.*.*.*:4200 refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.RedactAttr(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("got %q, want %q", got.Value.String(), tt.want)
			}
		})
	}

	n := slog.Int("count", 3)
	if got := r.RedactAttr(n); got.Value.Int64() != 3 {
		t.Errorf("non-string attrs must pass through, got %v", got)
	}
}

func TestRedactHelpers(t *testing.T) {
	if got := RedactEmail("@x.com"); got != "***@x.com" {
		t.Errorf("RedactEmail = %q", got)
	}
	if got := RedactEmail("not-an-email"); got != "not-an-email" {
		t.Errorf("RedactEmail = %q", got)
	}
	if got := RedactIPv4("1.2.3"); got != "1.2.3" {
		t.Errorf("RedactIPv4 = %q", got)
	}
	var nilRedactor *Redactor
	if got := nilRedactor.RedactString("a@b.co"); got != "a@b.co" {
		t.Errorf("nil redactor must be a no-op, got %q", got)
	}
}
