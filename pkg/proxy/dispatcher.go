package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"securemeet/relaygate/pkg/capture"
	"securemeet/relaygate/pkg/proxy/types"
	"securemeet/relaygate/pkg/telemetry/logging"
	"securemeet/relaygate/pkg/telemetry/metrics"
	"securemeet/relaygate/pkg/telemetry/tracing"
)

// Capturer receives traffic records. *capture.Pipeline implements it.
type Capturer interface {
	Capture(partial capture.Record)
}

// Options configures a Dispatcher.
type Options struct {
	// UpstreamTimeout bounds dialing an upstream and waiting for its
	// response headers or WebSocket handshake.
	UpstreamTimeout time.Duration

	// MaxIdleConnsPerHost sizes the upstream connection pool.
	MaxIdleConnsPerHost int

	// Transport overrides the upstream transport. Optional.
	Transport http.RoundTripper

	Tracer  *tracing.Tracer
	Metrics *metrics.Collector
}

type routeKey struct{}

// Dispatcher classifies inbound requests, forwards them to the matching
// upstream and captures one traffic record per exchange. It implements
// http.Handler.
type Dispatcher struct {
	classifier *Classifier
	capturer   Capturer
	opts       Options
	reverse    *httputil.ReverseProxy
	ws         *wsBridge
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(classifier *Classifier, capturer Capturer, opts Options) *Dispatcher {
	d := &Dispatcher{
		classifier: classifier,
		capturer:   capturer,
		opts:       opts,
		logger:     slog.Default().With("component", "proxy.dispatcher"),
		now:        time.Now,
	}

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(opts)
	}
	d.reverse = &httputil.ReverseProxy{
		Rewrite:      d.rewrite,
		Transport:    transport,
		ErrorHandler: d.upstreamError,
		ErrorLog:     slog.NewLogLogger(d.logger.Handler(), slog.LevelWarn),
	}
	d.ws = newWSBridge(d, opts)
	return d
}

func newTransport(opts Options) *http.Transport {
	dialer := &net.Dialer{Timeout: opts.UpstreamTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.UpstreamTimeout,
		ResponseHeaderTimeout: opts.UpstreamTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// Shutdown closes bridged WebSocket connections, which http.Server.Shutdown
// does not track once hijacked, and waits for their CLOSE records. New
// upgrades are refused with 503 afterwards.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	return d.ws.shutdown(ctx)
}

// Classifier returns the dispatcher's classification table.
func (d *Dispatcher) Classifier() *Classifier {
	return d.classifier
}

// ServeHTTP forwards r to its service's upstream. Unroutable requests get
// a 404 and are still captured as "other".
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := d.classifier.Classify(r.URL.Path)
	ctx := logging.WithService(r.Context(), route.Service)

	if route.Forwardable() && websocket.IsWebSocketUpgrade(r) {
		d.ws.serve(w, r.WithContext(ctx), route)
		return
	}

	start := d.now()
	body := &countingReader{r: r.Body}
	if r.Body != nil {
		r.Body = body
	}
	rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

	defer func() {
		end := d.now()
		requestBytes := body.n
		if requestBytes == 0 && r.ContentLength > 0 {
			requestBytes = r.ContentLength
		}
		src, dst := endpoints(r)

		d.opts.Metrics.RecordProxyRequest(route.Service, rec.status, end.Sub(start))
		d.capturer.Capture(HTTPRecord(Exchange{
			Service:       route.Service,
			Method:        r.Method,
			Status:        rec.status,
			Src:           src,
			Dst:           dst,
			RequestBytes:  requestBytes,
			ResponseBytes: rec.bytes,
			Start:         start,
			End:           end,
		}))
	}()

	if !route.Forwardable() {
		d.logger.DebugContext(ctx, "no route for request", "method", r.Method, "path", r.URL.Path)
		types.NewNotFoundError(fmt.Sprintf("no service matches path %q", r.URL.Path)).Write(rec)
		return
	}

	ctx = context.WithValue(ctx, routeKey{}, route)
	ctx, span := d.opts.Tracer.Start(ctx, "proxy "+route.Service,
		trace.WithSpanKind(trace.SpanKindClient),
		tracing.ProxyRequestAttributes(r.Method, r.URL.Path, route.Service, route.Target.String(), capture.ProtoHTTP),
	)
	defer span.End()

	d.reverse.ServeHTTP(rec, r.WithContext(ctx))

	tracing.SetResponseAttributes(span, rec.status, body.n, rec.bytes)
	if rec.status < http.StatusInternalServerError {
		tracing.SetStatus(span, nil)
	}
}

func (d *Dispatcher) rewrite(pr *httputil.ProxyRequest) {
	route, _ := pr.In.Context().Value(routeKey{}).(Route)

	pr.Out.URL.Path = route.UpstreamPath(pr.In.URL.Path)
	pr.Out.URL.RawPath = ""
	pr.SetURL(route.Target)
	pr.SetXForwarded()
	tracing.Inject(pr.Out.Context(), pr.Out.Header)
}

// upstreamError answers a failed round trip with 502 or 504. There is no
// retry.
func (d *Dispatcher) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	route, _ := r.Context().Value(routeKey{}).(Route)
	upErr := NewUpstreamError(route.Service, route.Target.String(), err)

	d.opts.Metrics.RecordUpstreamError(route.Service, upErr.Kind)
	tracing.SetUpstreamError(trace.SpanFromContext(r.Context()), upErr.Kind, upErr)

	if upErr.Kind == KindCanceled {
		d.logger.DebugContext(r.Context(), "client went away before upstream responded", "error", upErr)
	} else {
		d.logger.ErrorContext(r.Context(), "upstream request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", upErr,
		)
	}
	upErr.ToErrorResponse().Write(w)
}

type countingReader struct {
	r io.ReadCloser
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Close() error {
	return c.r.Close()
}

// responseRecorder captures the status code and body size written.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (rw *responseRecorder) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	if code >= 200 {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
