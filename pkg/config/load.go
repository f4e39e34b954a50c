package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix shared by all environment variable overrides.
const EnvPrefix = "RELAYGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// An empty path yields the defaults.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RELAYGATE_SECTION_FIELD (e.g., RELAYGATE_PROXY_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	applyServerEnvOverrides(&cfg.Signaling.ServerConfig, "SIGNALING")
	envString("SIGNALING_PATH", &cfg.Signaling.Path)
	if val := os.Getenv(EnvPrefix + "SIGNALING_MAX_MESSAGE_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Signaling.MaxMessageBytes = i
		}
	}
	envInt("SIGNALING_OUTBOX_SIZE", &cfg.Signaling.OutboxSize)
	envDuration("SIGNALING_OUTBOX_TIMEOUT", &cfg.Signaling.OutboxTimeout)
	envDuration("SIGNALING_PONG_TIMEOUT", &cfg.Signaling.PongTimeout)
	if val := os.Getenv(EnvPrefix + "SIGNALING_ALLOWED_ORIGINS"); val != "" {
		cfg.Signaling.AllowedOrigins = splitList(val)
	}

	applyServerEnvOverrides(&cfg.Proxy.ServerConfig, "PROXY")
	envString("PROXY_DEFAULT_TARGET", &cfg.Proxy.DefaultTarget)
	envDuration("PROXY_UPSTREAM_TIMEOUT", &cfg.Proxy.UpstreamTimeout)
	// Per-service target overrides, e.g. RELAYGATE_PROXY_SERVICES_CHAT_TARGET.
	for i := range cfg.Proxy.Services {
		key := "PROXY_SERVICES_" + strings.ToUpper(cfg.Proxy.Services[i].Name) + "_TARGET"
		envString(key, &cfg.Proxy.Services[i].Target)
	}

	envString("CAPTURE_FLUSH_SCHEDULE", &cfg.Capture.FlushSchedule)
	envInt("CAPTURE_MAX_BUFFERED", &cfg.Capture.MaxBuffered)
	envString("CAPTURE_EXPORT_PATH", &cfg.Capture.Export.Path)
	envBool("CAPTURE_ARCHIVE_ENABLED", &cfg.Capture.Archive.Enabled)
	envString("CAPTURE_ARCHIVE_BACKEND", &cfg.Capture.Archive.Backend)
	envString("CAPTURE_ARCHIVE_SQLITE_DRIVER", &cfg.Capture.Archive.SQLite.Driver)
	envString("CAPTURE_ARCHIVE_SQLITE_PATH", &cfg.Capture.Archive.SQLite.Path)
	envInt("CAPTURE_ARCHIVE_RETENTION_DAYS", &cfg.Capture.Archive.Retention.Days)

	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = boolPtr(b)
		}
	}
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func applyServerEnvOverrides(cfg *ServerConfig, section string) {
	envString(section+"_LISTEN_ADDRESS", &cfg.ListenAddress)
	envDuration(section+"_READ_TIMEOUT", &cfg.ReadTimeout)
	envDuration(section+"_WRITE_TIMEOUT", &cfg.WriteTimeout)
	envDuration(section+"_IDLE_TIMEOUT", &cfg.IdleTimeout)
	envDuration(section+"_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	envInt(section+"_MAX_HEADER_BYTES", &cfg.MaxHeaderBytes)
	envBool(section+"_TLS_ENABLED", &cfg.TLS.Enabled)
	envString(section+"_TLS_CERT_FILE", &cfg.TLS.CertFile)
	envString(section+"_TLS_KEY_FILE", &cfg.TLS.KeyFile)
	envDuration(section+"_TLS_RELOAD_INTERVAL", &cfg.TLS.ReloadInterval)
}

// Malformed values are ignored and the file value is kept.

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
