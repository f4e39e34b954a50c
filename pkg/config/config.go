package config

import "time"

// Config is the root configuration structure for relaygate.
// It contains the settings for the signaling server, the capturing reverse
// proxy, the traffic capture pipeline, and telemetry.
type Config struct {
	// Signaling contains the WebSocket signaling server configuration
	// including listen address, keepalive timing, and outbound queue limits.
	Signaling SignalingConfig `yaml:"signaling"`

	// Proxy contains the capturing reverse proxy configuration including
	// the service classification table and upstream timeouts.
	Proxy ProxyConfig `yaml:"proxy"`

	// Capture contains the traffic capture pipeline configuration including
	// the export target, flush schedule, and optional archive.
	Capture CaptureConfig `yaml:"capture"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing, and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains the listener settings shared by both services.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8000", ":5002").
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Hijacked WebSocket connections manage their own deadlines.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests to drain
	// before the listener is closed. Shutdown hooks get a separate period
	// of the same length.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS contains optional TLS termination settings.
	TLS TLSConfig `yaml:"tls"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`
}

// TLSConfig contains TLS termination settings.
type TLSConfig struct {
	// Enabled controls whether the listener serves TLS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM encoded certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM encoded private key.
	KeyFile string `yaml:"key_file"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. Zero disables reloading.
	// Default: 0
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "PUT", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600 (1 hour)
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls whether credentials are allowed in CORS requests.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// IsEnabled reports whether CORS is enabled, treating an unset value as true.
func (c CORSConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SignalingConfig contains configuration for the signaling server.
type SignalingConfig struct {
	ServerConfig `yaml:",inline"`

	// Path is the HTTP path that accepts WebSocket upgrades.
	// Default: "/ws"
	Path string `yaml:"path"`

	// AllowedOrigins restricts the Origin header of upgrade requests.
	// An empty list or ["*"] accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageBytes is the largest inbound frame accepted from a client.
	// File transfers are relayed in a single frame, so this bounds file size.
	// Default: 16777216 (16MB)
	MaxMessageBytes int64 `yaml:"max_message_bytes"`

	// OutboxSize is the capacity of each connection's outbound queue.
	// Default: 256
	OutboxSize int `yaml:"outbox_size"`

	// OutboxTimeout is how long a sender blocks on a full outbound queue
	// before the target connection is considered broken.
	// Default: 5s
	OutboxTimeout time.Duration `yaml:"outbox_timeout"`

	// WriteWait is the deadline for writing a single frame.
	// Default: 10s
	WriteWait time.Duration `yaml:"write_wait"`

	// PongTimeout is how long to wait for a pong before the connection is
	// considered dead. Pings are sent at 9/10 of this interval.
	// Default: 60s
	PongTimeout time.Duration `yaml:"pong_timeout"`
}

// ProxyConfig contains configuration for the capturing reverse proxy.
type ProxyConfig struct {
	ServerConfig `yaml:",inline"`

	// Services is the ordered classification table. The first service with a
	// matching path prefix receives the request.
	// Default: chat, meet, blockchain, userProfile on localhost
	Services []ServiceConfig `yaml:"services"`

	// DefaultTarget is the upstream for requests that match no service.
	// When empty, unmatched requests are rejected with 404.
	DefaultTarget string `yaml:"default_target"`

	// UpstreamTimeout bounds connecting to an upstream and waiting for its
	// response headers. Exceeding it yields 504 Gateway Timeout.
	// Default: 30s
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// MaxIdleConnsPerHost is the idle connection pool size per upstream.
	// Default: 32
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// ServiceConfig describes one entry of the classification table.
type ServiceConfig struct {
	// Name is the service name recorded in traffic records.
	Name string `yaml:"name"`

	// Target is the upstream base URL (e.g., "http://localhost:4200").
	Target string `yaml:"target"`

	// Prefixes are the URL path prefixes that classify a request as this service.
	Prefixes []string `yaml:"prefixes"`

	// StripPrefix removes the matched prefix before forwarding.
	StripPrefix bool `yaml:"strip_prefix"`
}

// CaptureConfig contains configuration for the traffic capture pipeline.
type CaptureConfig struct {
	// FlushSchedule is a cron expression for periodic exports.
	// Default: "@every 5m"
	FlushSchedule string `yaml:"flush_schedule"`

	// MaxBuffered caps the number of records held in memory. When exports
	// keep failing the oldest records beyond this cap are dropped.
	// Default: 100000
	MaxBuffered int `yaml:"max_buffered"`

	// ExportTimeout bounds a single flush.
	// Default: 30s
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// Export contains the CSV export target.
	Export ExportConfig `yaml:"export"`

	// Archive contains the optional archive of exported records.
	Archive ArchiveConfig `yaml:"archive"`
}

// ExportConfig contains the CSV export target configuration.
type ExportConfig struct {
	// Path is the CSV file that exported records are appended to.
	// Default: "logs/network_traffic_unswnb15.csv"
	Path string `yaml:"path"`
}

// ArchiveConfig contains configuration for the exported-record archive.
type ArchiveConfig struct {
	// Enabled controls whether exported records are also archived.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the archive backend.
	// Options: "sqlite", "memory"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention contains archive pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the file path for the SQLite database.
	// Default: "data/traffic.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains archive retention configuration.
type RetentionConfig struct {
	// Days is the number of days to keep archived records.
	// 0 means keep records forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords is the maximum number of archived records to keep.
	// 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression for scheduling pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks participant emails and IP addresses in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "relaygate"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for proxied request
	// duration (seconds).
	// Default: [0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// IsEnabled reports whether metrics are enabled, treating an unset value as true.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for span exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the service name in traces.
	// Default: "relaygate"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
