// Package telemetry wires the process's observability.
//
// New configures the default slog logger (see logging), a Prometheus
// collector with its own registry (metrics), an OpenTelemetry tracer
// (tracing) and the health checker (health) from one TelemetryConfig:
//
//	tel, err := telemetry.New(&cfg.Telemetry, version, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	srv := wsserver.New(&cfg.Signaling, tel.Metrics())
//
// Emails and client addresses are redacted from logs by default.
package telemetry
