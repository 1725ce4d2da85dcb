// Package observability provides OpenTelemetry tracing and metrics for the
// composition engine.
//
// Exporters are optional; without Init the global no-op providers are used:
//
//	shutdown, err := observability.Init(ctx, "inventory", cfg.Telemetry)
//	defer shutdown(ctx)
//
// Containers record spans named di.compose and di.construct and the
// instruments of CompositionMetrics.
package observability
