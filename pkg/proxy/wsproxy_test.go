package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"securemeet/relaygate/internal/upstream"
	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/capture/export"
	"securemeet/relaygate/pkg/config"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestWebSocketBridge(t *testing.T) {
	up := upstream.New()
	defer up.Close()

	services := []config.ServiceConfig{
		{Name: "meet", Target: up.URL(), Prefixes: []string{"/meet"}, StripPrefix: true},
	}
	p := newTestProxy(t, services, "", nil)

	dialer := websocket.Dialer{Subprotocols: []string{upstream.Subprotocol}}
	conn, resp, err := dialer.Dial(wsURL(p.server.URL, "/meet/socket?room=42"), nil)
	if err != nil {
		t.Fatalf("dial through proxy failed: %v (%v)", err, resp)
	}
	if conn.Subprotocol() != upstream.Subprotocol {
		t.Errorf("subprotocol = %q, want %q", conn.Subprotocol(), upstream.Subprotocol)
	}

	frames := []string{"hello", "offer", "bye!"}
	var total int64
	for _, frame := range frames {
		total += int64(len(frame))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatal(err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, echo, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read echo failed: %v", err)
		}
		if string(echo) != frame {
			t.Errorf("echo = %q, want %q", echo, frame)
		}
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	records := p.capturer.waitRecords(t, 2+2*len(frames))

	if records[0].State != capture.StateOpen {
		t.Errorf("first record state = %s, want OPEN", records[0].State)
	}
	last := records[len(records)-1]
	if last.State != capture.StateClose {
		t.Fatalf("last record state = %s, want CLOSE", last.State)
	}
	if last.Sbytes != total || last.Dbytes != total {
		t.Errorf("CLOSE totals = %d/%d, want %d/%d", last.Sbytes, last.Dbytes, total, total)
	}

	var up2down, down2up int
	for _, rec := range records {
		if rec.Proto != capture.ProtoWS || rec.Service != "meet" {
			t.Errorf("unexpected record %+v", rec)
		}
		if rec.State != capture.StateMessage {
			continue
		}
		switch {
		case rec.Sbytes > 0 && rec.Dbytes == 0:
			down2up++
		case rec.Dbytes > 0 && rec.Sbytes == 0:
			up2down++
		default:
			t.Errorf("MESSAGE record must count one direction: %+v", rec)
		}
	}
	if down2up != len(frames) || up2down != len(frames) {
		t.Errorf("MESSAGE records = %d client->upstream, %d upstream->client, want %d each", down2up, up2down, len(frames))
	}

	select {
	case <-up.WebSocketClosed():
	case <-time.After(2 * time.Second):
		t.Error("upstream connection was not closed")
	}
}

func TestWebSocketBridge_UpstreamDown(t *testing.T) {
	dead := upstream.New()
	target := dead.URL()
	dead.Close()

	services := []config.ServiceConfig{
		{Name: "meet", Target: target, Prefixes: []string{"/meet"}, StripPrefix: true},
	}
	p := newTestProxy(t, services, "", nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(p.server.URL, "/meet/socket"), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", resp)
	}
	if n := len(p.capturer.all()); n != 0 {
		t.Errorf("no bridge was opened, expected no records, got %d", n)
	}
}

func TestDispatcher_ShutdownClosesBridges(t *testing.T) {
	up := upstream.New()
	defer up.Close()

	classifier, err := NewClassifier([]config.ServiceConfig{
		{Name: "meet", Target: up.URL(), Prefixes: []string{"/meet"}, StripPrefix: true},
	}, "")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "traffic.csv")
	pipeline := capture.NewPipeline(export.NewFileExporter(path), capture.Options{})
	d := NewDispatcher(classifier, pipeline, Options{UpstreamTimeout: 2 * time.Second})
	ts := httptest.NewServer(d)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/meet/socket"), nil)
	if err != nil {
		t.Fatalf("dial through proxy failed: %v", err)
	}
	defer conn.Close()
	conn.WriteMessage(websocket.TextMessage, []byte("before"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read echo failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := pipeline.Close(ctx); err != nil {
		t.Fatalf("final flush failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close for the client, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	rows := string(data)
	if n := strings.Count(rows, ",WS,OPEN,"); n != 1 {
		t.Errorf("exported %d OPEN rows, want 1", n)
	}
	if n := strings.Count(rows, ",WS,CLOSE,"); n != 1 {
		t.Errorf("exported %d CLOSE rows, want 1", n)
	}
	if n := pipeline.Len(); n != 0 {
		t.Errorf("%d records left behind after the final flush", n)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/meet/socket"), nil)
	if err == nil {
		t.Fatal("expected new bridges to be refused after shutdown")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %v", resp)
	}
}

func TestUpstreamURL(t *testing.T) {
	tests := []struct {
		target string
		path   string
		strip  bool
		want   string
	}{
		{"http://meet.local:8000", "/meet/socket?room=1", true, "ws://meet.local:8000/socket?room=1"},
		{"https://meet.example/base/", "/meet/socket", true, "wss://meet.example/base/socket"},
		{"http://meet.local", "/meet/socket", false, "ws://meet.local/meet/socket"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			target, _ := url.Parse(tt.target)
			route := Route{Service: "meet", Target: target, Prefix: "/meet", StripPrefix: tt.strip}
			r, _ := http.NewRequest(http.MethodGet, "http://proxy"+tt.path, nil)
			if got := upstreamURL(route, r).String(); got != tt.want {
				t.Errorf("upstreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
