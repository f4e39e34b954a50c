package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/telemetry/metrics"
	"securemeet/relaygate/pkg/telemetry/tracing"
)

const wsControlWait = 5 * time.Second

// Frame directions, as recorded in metrics.
const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"
)

// forwardedWSHeaders are copied from the client handshake to the upstream
// handshake. gorilla/websocket sets the protocol headers itself.
var forwardedWSHeaders = []string{
	"Authorization",
	"Cookie",
	"Origin",
	"User-Agent",
	"X-Request-ID",
}

// wsBridge relays WebSocket connections between clients and upstreams.
type wsBridge struct {
	d        *Dispatcher
	dialer   *websocket.Dialer
	upgrader websocket.Upgrader
	metrics  *metrics.Collector
	logger   *slog.Logger

	mu       sync.Mutex
	active   map[*bridgeConns]struct{}
	closing  bool
	sessions sync.WaitGroup
}

// bridgeConns is the pair of connections of one live bridge.
type bridgeConns struct {
	client   *websocket.Conn
	upstream *websocket.Conn
}

// close sends a going-away close frame to both sides and closes them,
// which ends both pumps.
func (c *bridgeConns) close() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "proxy shutting down")
	deadline := time.Now().Add(wsControlWait)
	c.client.WriteControl(websocket.CloseMessage, msg, deadline)
	c.upstream.WriteControl(websocket.CloseMessage, msg, deadline)
	c.client.Close()
	c.upstream.Close()
}

func newWSBridge(d *Dispatcher, opts Options) *wsBridge {
	return &wsBridge{
		d: d,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.UpstreamTimeout,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is forwarded; the upstream decides.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "proxy.websocket"),
		active:  make(map[*bridgeConns]struct{}),
	}
}

// track registers a live bridge. It reports false once shutdown started.
func (b *wsBridge) track(conns *bridgeConns) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return false
	}
	b.active[conns] = struct{}{}
	return true
}

func (b *wsBridge) untrack(conns *bridgeConns) {
	b.mu.Lock()
	delete(b.active, conns)
	b.mu.Unlock()
}

// shutdown refuses new bridges, closes the live ones and waits until each
// has captured its CLOSE record or ctx expires.
func (b *wsBridge) shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.closing = true
	live := make([]*bridgeConns, 0, len(b.active))
	for conns := range b.active {
		live = append(live, conns)
	}
	b.mu.Unlock()

	if len(live) > 0 {
		b.logger.Info("closing websocket bridges", "count", len(live))
	}
	for _, conns := range live {
		conns.close()
	}

	done := make(chan struct{})
	go func() {
		b.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket bridges did not close: %w", ctx.Err())
	}
}

// upstreamURL maps the client request onto the upstream's ws(s) URL.
func upstreamURL(route Route, r *http.Request) *url.URL {
	u := *route.Target
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = joinPath(u.Path, route.UpstreamPath(r.URL.Path))
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return &u
}

func joinPath(base, p string) string {
	switch {
	case base == "" || base == "/":
		return p
	case base[len(base)-1] == '/' && p != "" && p[0] == '/':
		return base + p[1:]
	default:
		return base + p
	}
}

func (b *wsBridge) serve(w http.ResponseWriter, r *http.Request, route Route) {
	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		http.Error(w, "proxy shutting down", http.StatusServiceUnavailable)
		return
	}
	b.sessions.Add(1)
	b.mu.Unlock()
	defer b.sessions.Done()

	ctx := r.Context()
	src, dst := endpoints(r)
	target := upstreamURL(route, r)

	header := http.Header{}
	for _, name := range forwardedWSHeaders {
		if v := r.Header.Values(name); len(v) > 0 {
			header[name] = v
		}
	}
	if src.IP != "" {
		header.Set("X-Forwarded-For", src.IP)
	}
	tracing.Inject(ctx, header)

	dialer := *b.dialer
	dialer.Subprotocols = websocket.Subprotocols(r)

	dialCtx, cancel := context.WithTimeout(ctx, b.dialTimeout())
	upstream, resp, err := dialer.DialContext(dialCtx, target.String(), header)
	cancel()
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		upErr := NewUpstreamError(route.Service, route.Target.String(), err)
		b.metrics.RecordUpstreamError(route.Service, upErr.Kind)
		b.logger.ErrorContext(ctx, "websocket upstream dial failed", "target", target.String(), "error", upErr)
		upErr.ToErrorResponse().Write(w)
		return
	}
	defer upstream.Close()

	var respHeader http.Header
	if proto := upstream.Subprotocol(); proto != "" {
		respHeader = http.Header{"Sec-Websocket-Protocol": []string{proto}}
	}
	client, err := b.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		// Upgrade has already written an error response.
		b.logger.DebugContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer client.Close()

	conns := &bridgeConns{client: client, upstream: upstream}
	if !b.track(conns) {
		conns.close()
		return
	}
	defer b.untrack(conns)

	start := b.d.now()
	event := func(state string, sbytes, dbytes int64) {
		b.d.capturer.Capture(WSRecord(WSEvent{
			Service: route.Service,
			State:   state,
			Src:     src,
			Dst:     dst,
			Sbytes:  sbytes,
			Dbytes:  dbytes,
			Start:   start,
			End:     b.d.now(),
		}))
	}

	event(capture.StateOpen, 0, 0)
	b.logger.InfoContext(ctx, "websocket bridge opened", "target", target.String())

	var sent, received int64
	errc := make(chan error, 2)
	go func() {
		errc <- b.pump(upstream, client, func(n int) {
			sent += int64(n)
			b.metrics.RecordWebSocketMessage(route.Service, DirectionUpstream)
			event(capture.StateMessage, int64(n), 0)
		})
	}()
	go func() {
		errc <- b.pump(client, upstream, func(n int) {
			received += int64(n)
			b.metrics.RecordWebSocketMessage(route.Service, DirectionDownstream)
			event(capture.StateMessage, 0, int64(n))
		})
	}()

	first := <-errc
	client.Close()
	upstream.Close()
	<-errc

	event(capture.StateClose, sent, received)
	b.logger.InfoContext(ctx, "websocket bridge closed",
		"bytes_upstream", sent,
		"bytes_downstream", received,
		"reason", first,
	)
}

func (b *wsBridge) dialTimeout() time.Duration {
	if b.dialer.HandshakeTimeout > 0 {
		return b.dialer.HandshakeTimeout
	}
	return 30 * time.Second
}

// pump copies frames from src to dst until either side fails. A close
// frame from src is passed on to dst.
func (b *wsBridge) pump(dst, src *websocket.Conn, onMessage func(n int)) error {
	for {
		kind, data, err := src.ReadMessage()
		if err != nil {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseNoStatusReceived && ce.Code != websocket.CloseAbnormalClosure {
				closeMsg = websocket.FormatCloseMessage(ce.Code, ce.Text)
			}
			dst.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(wsControlWait))
			return err
		}

		onMessage(len(data))
		if err := dst.WriteMessage(kind, data); err != nil {
			return err
		}
	}
}
