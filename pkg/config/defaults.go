package config

import "time"

// Default values for configuration fields.
const (
	// Shared listener defaults
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Signaling defaults
	DefaultSignalingListenAddress = ":8000"
	DefaultSignalingPath          = "/ws"
	DefaultMaxMessageBytes        = int64(16 << 20)
	DefaultOutboxSize             = 256
	DefaultOutboxTimeout          = 5 * time.Second
	DefaultWriteWait              = 10 * time.Second
	DefaultPongTimeout            = 60 * time.Second

	// Proxy defaults
	DefaultProxyListenAddress  = ":5002"
	DefaultUpstreamTimeout     = 30 * time.Second
	DefaultMaxIdleConnsPerHost = 32

	// Capture defaults
	DefaultFlushSchedule          = "@every 5m"
	DefaultMaxBuffered            = 100000
	DefaultExportTimeout          = 30 * time.Second
	DefaultExportPath             = "logs/network_traffic_unswnb15.csv"
	DefaultArchiveBackend         = "sqlite"
	DefaultSQLiteDriver           = "sqlite"
	DefaultSQLitePath             = "data/traffic.db"
	DefaultSQLiteMaxOpenConns     = 4
	DefaultSQLiteWALMode          = true
	DefaultSQLiteBusyTimeout      = 5 * time.Second
	DefaultRetentionDays          = 30
	DefaultRetentionPruneSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedactPII = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "relaygate"
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 0.1
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultServiceName      = "relaygate"
	DefaultLivenessPath     = "/health"
	DefaultReadinessPath    = "/ready"
	DefaultCheckTimeout     = 5 * time.Second
)

// Default CORS lists.
var (
	DefaultCORSAllowedOrigins = []string{"*"}
	DefaultCORSAllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	DefaultCORSAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID"}
	DefaultCORSExposedHeaders = []string{"X-Request-ID"}

	// DefaultRequestDurationBuckets are histogram buckets for proxied requests.
	DefaultRequestDurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
)

// DefaultServices returns the classification table used when none is
// configured. Each backend is mounted under its own prefix and the prefix is
// stripped before forwarding.
func DefaultServices() []ServiceConfig {
	return []ServiceConfig{
		{Name: "chat", Target: "http://localhost:4200", Prefixes: []string{"/chat"}, StripPrefix: true},
		{Name: "meet", Target: "http://localhost:8000", Prefixes: []string{"/meet"}, StripPrefix: true},
		{Name: "blockchain", Target: "http://localhost:5000", Prefixes: []string{"/blockchain"}, StripPrefix: true},
		{Name: "userProfile", Target: "http://localhost:5001", Prefixes: []string{"/userProfile"}, StripPrefix: true},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Signaling defaults
	applyServerDefaults(&cfg.Signaling.ServerConfig, DefaultSignalingListenAddress)
	if cfg.Signaling.Path == "" {
		cfg.Signaling.Path = DefaultSignalingPath
	}
	if cfg.Signaling.MaxMessageBytes == 0 {
		cfg.Signaling.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.Signaling.OutboxSize == 0 {
		cfg.Signaling.OutboxSize = DefaultOutboxSize
	}
	if cfg.Signaling.OutboxTimeout == 0 {
		cfg.Signaling.OutboxTimeout = DefaultOutboxTimeout
	}
	if cfg.Signaling.WriteWait == 0 {
		cfg.Signaling.WriteWait = DefaultWriteWait
	}
	if cfg.Signaling.PongTimeout == 0 {
		cfg.Signaling.PongTimeout = DefaultPongTimeout
	}

	// Proxy defaults
	applyServerDefaults(&cfg.Proxy.ServerConfig, DefaultProxyListenAddress)
	if len(cfg.Proxy.Services) == 0 {
		cfg.Proxy.Services = DefaultServices()
	}
	if cfg.Proxy.UpstreamTimeout == 0 {
		cfg.Proxy.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.Proxy.MaxIdleConnsPerHost == 0 {
		cfg.Proxy.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}

	// Capture defaults
	if cfg.Capture.FlushSchedule == "" {
		cfg.Capture.FlushSchedule = DefaultFlushSchedule
	}
	if cfg.Capture.MaxBuffered == 0 {
		cfg.Capture.MaxBuffered = DefaultMaxBuffered
	}
	if cfg.Capture.ExportTimeout == 0 {
		cfg.Capture.ExportTimeout = DefaultExportTimeout
	}
	if cfg.Capture.Export.Path == "" {
		cfg.Capture.Export.Path = DefaultExportPath
	}
	if cfg.Capture.Archive.Backend == "" {
		cfg.Capture.Archive.Backend = DefaultArchiveBackend
	}

	// SQLite defaults
	sqlite := &cfg.Capture.Archive.SQLite
	if sqlite.Driver == "" {
		sqlite.Driver = DefaultSQLiteDriver
	}
	if sqlite.Path == "" {
		sqlite.Path = DefaultSQLitePath
	}
	if sqlite.MaxOpenConns == 0 {
		sqlite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if sqlite.WALMode == nil {
		sqlite.WALMode = boolPtr(DefaultSQLiteWALMode)
	}
	if sqlite.BusyTimeout == 0 {
		sqlite.BusyTimeout = DefaultSQLiteBusyTimeout
	}

	// Retention defaults
	if cfg.Capture.Archive.Retention.Days == 0 {
		cfg.Capture.Archive.Retention.Days = DefaultRetentionDays
	}
	if cfg.Capture.Archive.Retention.PruneSchedule == "" {
		cfg.Capture.Archive.Retention.PruneSchedule = DefaultRetentionPruneSchedule
	}

	// Telemetry defaults
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig, listenAddress string) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = listenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// CORS defaults
	if cfg.CORS.Enabled == nil {
		cfg.CORS.Enabled = boolPtr(DefaultCORSEnabled)
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = append([]string(nil), DefaultCORSAllowedOrigins...)
	}
	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}
	if len(cfg.CORS.ExposedHeaders) == 0 {
		cfg.CORS.ExposedHeaders = append([]string(nil), DefaultCORSExposedHeaders...)
	}
	if cfg.CORS.MaxAge == 0 {
		cfg.CORS.MaxAge = DefaultCORSMaxAge
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.RedactPII == nil {
		cfg.Logging.RedactPII = boolPtr(DefaultLoggingRedactPII)
	}

	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = boolPtr(DefaultMetricsEnabled)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}

	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultCheckTimeout
	}
}

func boolPtr(b bool) *bool {
	return &b
}
