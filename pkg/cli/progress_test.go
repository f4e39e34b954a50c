package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestSimpleProgress(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgressReporter(&buf)

	progress.Start(200)
	progress.Update(50)
	progress.Finish()

	out := buf.String()
	if !strings.Contains(out, " 25.0% 50/200 records") {
		t.Errorf("expected intermediate progress, got %q", out)
	}
	if !strings.Contains(out, "100.0% 200/200 records") {
		t.Errorf("expected final progress, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("expected Finish to end the line")
	}
}

func TestSimpleProgress_EdgeCases(t *testing.T) {
	var buf bytes.Buffer
	progress := NewProgressReporter(&buf)

	progress.Start(0)
	progress.Update(10)
	if strings.Contains(buf.String(), "%") {
		t.Errorf("zero total must not render, got %q", buf.String())
	}

	progress.Start(10)
	progress.Update(25)
	if !strings.Contains(buf.String(), "10/10") {
		t.Errorf("overshoot must be clamped, got %q", buf.String())
	}

	progress.Error(errors.New("disk full"))
	if !strings.Contains(buf.String(), "error: disk full") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}
