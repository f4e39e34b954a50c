package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateSignaling(&cfg.Signaling)...)
	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateCapture(&cfg.Capture)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates the listener settings shared by both services.
func validateServer(prefix string, cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   prefix + ".listen_address",
			Message: "listen address is required",
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: prefix + ".read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: prefix + ".write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: prefix + ".idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: prefix + ".shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: prefix + ".max_header_bytes", Message: "max header bytes must be non-negative"})
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: prefix + ".tls.cert_file", Message: "certificate file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: prefix + ".tls.key_file", Message: "key file is required when TLS is enabled"})
		}
		if cfg.TLS.ReloadInterval < 0 {
			errs = append(errs, FieldError{Field: prefix + ".tls.reload_interval", Message: "reload interval must be non-negative"})
		}
	}

	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: prefix + ".cors.max_age", Message: "max age must be non-negative"})
	}

	return errs
}

// validateSignaling validates signaling server configuration.
func validateSignaling(cfg *SignalingConfig) []FieldError {
	errs := validateServer("signaling", &cfg.ServerConfig)

	if !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "signaling.path",
			Message: fmt.Sprintf("path %q must start with /", cfg.Path),
		})
	}
	if cfg.MaxMessageBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "signaling.max_message_bytes",
			Message: "max message bytes must be positive",
		})
	}
	if cfg.OutboxSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "signaling.outbox_size",
			Message: "outbox size must be positive",
		})
	}
	if cfg.OutboxTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "signaling.outbox_timeout",
			Message: "outbox timeout must be positive",
		})
	}
	if cfg.WriteWait <= 0 {
		errs = append(errs, FieldError{
			Field:   "signaling.write_wait",
			Message: "write wait must be positive",
		})
	}
	if cfg.PongTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "signaling.pong_timeout",
			Message: "pong timeout must be positive",
		})
	}

	return errs
}

// validateProxy validates proxy configuration.
func validateProxy(cfg *ProxyConfig) []FieldError {
	errs := validateServer("proxy", &cfg.ServerConfig)

	names := make(map[string]bool, len(cfg.Services))
	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("proxy.services[%d]", i)

		if svc.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "service name is required"})
		} else if names[svc.Name] {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate service name %q", svc.Name)})
		} else if svc.Name == "other" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: `"other" is reserved for unclassified traffic`})
		}
		names[svc.Name] = true

		if err := validateUpstreamURL(svc.Target); err != "" {
			errs = append(errs, FieldError{Field: prefix + ".target", Message: err})
		}

		if len(svc.Prefixes) == 0 {
			errs = append(errs, FieldError{Field: prefix + ".prefixes", Message: "at least one path prefix is required"})
		}
		for j, p := range svc.Prefixes {
			if !strings.HasPrefix(p, "/") {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.prefixes[%d]", prefix, j),
					Message: fmt.Sprintf("prefix %q must start with /", p),
				})
			}
		}
	}

	if cfg.DefaultTarget != "" {
		if err := validateUpstreamURL(cfg.DefaultTarget); err != "" {
			errs = append(errs, FieldError{Field: "proxy.default_target", Message: err})
		}
	}

	if cfg.UpstreamTimeout <= 0 {
		errs = append(errs, FieldError{Field: "proxy.upstream_timeout", Message: "upstream timeout must be positive"})
	}
	if cfg.MaxIdleConnsPerHost < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_idle_conns_per_host", Message: "max idle connections must be non-negative"})
	}

	return errs
}

// validateUpstreamURL returns a message describing why target is not a
// usable upstream base URL, or "" when it is.
func validateUpstreamURL(target string) string {
	if target == "" {
		return "target URL is required"
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Sprintf("invalid target URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("target URL %q must use http or https", target)
	}
	if u.Host == "" {
		return fmt.Sprintf("target URL %q has no host", target)
	}
	return ""
}

// validateCapture validates capture pipeline configuration.
func validateCapture(cfg *CaptureConfig) []FieldError {
	var errs []FieldError

	if _, err := cron.ParseStandard(cfg.FlushSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "capture.flush_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.FlushSchedule, err),
		})
	}
	if cfg.MaxBuffered < 0 {
		errs = append(errs, FieldError{Field: "capture.max_buffered", Message: "max buffered must be non-negative"})
	}
	if cfg.ExportTimeout <= 0 {
		errs = append(errs, FieldError{Field: "capture.export_timeout", Message: "export timeout must be positive"})
	}
	if cfg.Export.Path == "" {
		errs = append(errs, FieldError{Field: "capture.export.path", Message: "export path is required"})
	}

	if !cfg.Archive.Enabled {
		return errs
	}

	switch cfg.Archive.Backend {
	case "sqlite":
		if cfg.Archive.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "capture.archive.sqlite.path", Message: "sqlite path is required"})
		}
		if d := cfg.Archive.SQLite.Driver; d != "sqlite" && d != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "capture.archive.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", d),
			})
		}
		if cfg.Archive.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{Field: "capture.archive.sqlite.max_open_conns", Message: "max open connections must be non-negative"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "capture.archive.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'sqlite' or 'memory'", cfg.Archive.Backend),
		})
	}

	if cfg.Archive.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "capture.archive.retention.days", Message: "retention days must be non-negative"})
	}
	if cfg.Archive.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "capture.archive.retention.max_records", Message: "max records must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.Archive.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "capture.archive.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Archive.Retention.PruneSchedule, err),
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i, b := range cfg.Metrics.RequestDurationBuckets {
		if i > 0 && b <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with /",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with /",
		})
	}
	if cfg.Health.CheckTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be positive",
		})
	}

	return errs
}
