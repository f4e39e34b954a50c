// Package tracing provides OpenTelemetry tracing for the proxy.
//
// When telemetry.tracing.enabled is set, New installs an SDK tracer
// provider exporting over OTLP gRPC and a W3C Trace Context propagator. The
// dispatcher starts one span per forwarded request, continuing any trace the
// client sent, and Inject writes the span's traceparent into the upstream
// request so backends can join the same trace.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
//	ctx = tracing.Extract(r.Context(), r.Header)
//	ctx, span := tracer.Start(ctx, "proxy.forward",
//	    tracing.ProxyRequestAttributes(r.Method, r.URL.Path, "chat", target, "HTTP"))
//	defer span.End()
//	tracing.Inject(ctx, outReq.Header)
//
// Sampling is parent-based over one of always, never or a trace ID ratio.
// With tracing disabled every span is a no-op.
package tracing
