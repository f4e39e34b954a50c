// Package logging configures the process-wide slog logger.
//
// Components log through slog.Default().With("component", ...); this package
// builds the handler behind that default from config.LoggingConfig:
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
//
// Records logged with a context carry request_id, conn_id, service and the
// active trace and span IDs when present. With redaction enabled, emails and
// IPv4 addresses are masked (alice@example.com becomes a***@example.com,
// 10.1.2.3 becomes 10.*.*.*), bearer tokens and passwords are removed, and
// attributes with secret-looking keys are replaced with "***".
//
// The level is shared across loggers and can be changed at runtime with
// SetLevel, which the config watcher does on reload.
package logging
