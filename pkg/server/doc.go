// Package server provides the HTTP server lifecycle shared by the signaling
// server and the capturing proxy.
//
// # Architecture
//
// NewRouter builds the handler for one listener:
//   - Health endpoints (/health, /ready, /version) from the telemetry checker
//   - The Prometheus endpoint when metrics are enabled
//   - Service specific routes (the signaling upgrade path, proxy admin
//     endpoints)
//   - An optional catch-all fallback (the proxy dispatcher)
//
// and wraps it in the middleware chain:
//
//	Recovery(Logging(RequestID(CORS(mux))))
//
// Server owns the listener. Start binds, serves until ctx is canceled, then
// shuts down gracefully:
//  1. Stops accepting new connections
//  2. Waits for in-flight requests up to ShutdownTimeout
//  3. Runs shutdown hooks (closing hijacked WebSocket connections, the
//     final capture flush) in registration order, with a fresh
//     ShutdownTimeout that an overrunning drain cannot consume
//
// # Basic Usage
//
//	handler := server.NewRouter(server.RouterOptions{
//	    CORS:      cfg.Proxy.CORS,
//	    Telemetry: cfg.Telemetry,
//	    Health:    tel.Health(),
//	    Metrics:   tel.Metrics(),
//	    Routes:    []server.Route{{Pattern: "/proxy/status", Handler: status}},
//	    Fallback:  dispatcher,
//	})
//	srv := server.New("proxy", &cfg.Proxy.ServerConfig, handler)
//	srv.OnShutdown(pipeline.Close)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # TLS Support
//
// When tls.enabled is set the listener serves TLS 1.3 with the configured
// certificate and key. With a reload_interval the files are polled and a
// rotated certificate is picked up without a restart:
//
//	proxy:
//	  tls:
//	    enabled: true
//	    cert_file: "/path/to/cert.pem"
//	    key_file: "/path/to/key.pem"
//	    reload_interval: 1m
package server
