// Package proxy implements the capturing reverse proxy.
//
// Every inbound request is classified by path prefix into a named service,
// forwarded to that service's upstream, and summarized as a capture.Record
// once the exchange completes. WebSocket upgrades are bridged frame by frame
// and produce OPEN, MESSAGE and CLOSE records.
//
// # Classification
//
// Services are matched in configuration order. A prefix matches on a path
// segment boundary: "/chat" matches "/chat" and "/chat/rooms" but not
// "/chatroom". A request matching no service is labeled "other" and is
// forwarded to the default target, or answered with 404 when none is set.
//
// # Forwarding
//
// The Dispatcher is an httputil.ReverseProxy with a Rewrite hook. The
// matched prefix is stripped when the service asks for it, X-Forwarded-*
// headers are set, and the trace context is injected. Transport failures
// are reported to the client as JSON errors:
//
//	dial refused or generic failure  502 upstream_unavailable
//	response header timeout          504 upstream_timeout
//
// # Records
//
// HTTPRecord and WSRecord derive the flow features (duration, byte counts,
// throughput, state) from an Exchange or WSEvent. Recording never blocks
// the response path; records are handed to a Capturer after the response
// has been written.
//
// # Basic Usage
//
//	classifier, err := proxy.NewClassifier(cfg.Proxy.Services, cfg.Proxy.DefaultTarget)
//	if err != nil {
//	    return err
//	}
//	d := proxy.NewDispatcher(classifier, pipeline, proxy.Options{
//	    UpstreamTimeout: cfg.Proxy.UpstreamTimeout,
//	    Metrics:         collector,
//	})
//	mux.Handle("/", d)
package proxy
