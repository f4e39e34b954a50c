package server

import (
	"net/http"

	"securemeet/relaygate/pkg/config"
	"securemeet/relaygate/pkg/proxy/middleware"
	"securemeet/relaygate/pkg/telemetry/health"
	"securemeet/relaygate/pkg/telemetry/metrics"
)

// Route binds a ServeMux pattern to a handler.
type Route struct {
	Pattern string
	Handler http.Handler
}

// BuildInfo is reported by /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// RouterOptions describes the endpoints of one listener.
type RouterOptions struct {
	CORS      config.CORSConfig
	Telemetry config.TelemetryConfig

	// Health serves the liveness and readiness endpoints. Optional.
	Health *health.Checker

	// Metrics is exposed at Telemetry.Metrics.Path when metrics are enabled.
	// Optional.
	Metrics *metrics.Collector

	Build  BuildInfo
	Routes []Route

	// Fallback receives every request no other route matched. Optional;
	// without it unmatched paths get 404.
	Fallback http.Handler
}

// NewRouter assembles the mux for one listener and wraps it in the
// middleware chain.
func NewRouter(opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	if opts.Health != nil {
		opts.Health.Mount(mux, opts.Telemetry.Health, opts.Build.Version, opts.Build.Commit, opts.Build.BuildTime)
	}
	if opts.Metrics != nil && opts.Telemetry.Metrics.IsEnabled() {
		mux.Handle(opts.Telemetry.Metrics.Path, opts.Metrics.Handler())
	}
	for _, route := range opts.Routes {
		mux.Handle(route.Pattern, route.Handler)
	}
	if opts.Fallback != nil {
		mux.Handle("/", opts.Fallback)
	}

	var handler http.Handler = mux
	handler = middleware.CORSMiddleware(opts.CORS)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)
	return handler
}
