// Package telemetry provides observability for Mercator Saturn.
//
// # Components
//
//   - logging: structured slog setup with request-scoped fields
//   - metrics: Prometheus metrics collection and exposition
//   - tracing: OpenTelemetry distributed tracing over OTLP gRPC
//
// Each subpackage is configured from its section of
// config.TelemetryConfig and is safe to leave disabled: metrics and
// tracing become no-ops, logging falls back to an info-level JSON logger.
//
// # Usage
//
//	logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	defer tracer.Shutdown(context.Background())
package telemetry
