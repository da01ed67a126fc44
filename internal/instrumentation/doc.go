// Package instrumentation provides OpenTelemetry metrics and tracing for
// slotkeeper.
//
// # Metrics
//
// Calendar provider:
//   - calendar_api_operations_total: Counter of provider calls by operation and status
//   - calendar_api_operation_duration_seconds: Histogram of provider call durations
//   - calendar_api_retries_total: Counter of rate-limit retries by operation
//
// Availability:
//   - availability_refreshes_total: Counter of snapshot refreshes by source and status
//   - availability_cache_lookups_total: Counter of snapshot reads by result (hit, miss)
//   - bookings_total: Counter of booking and cancellation attempts by operation and result
//
// Registry and events:
//   - registry_tenants: Gauge of registered tenants
//   - registry_evictions_total: Counter of capacity evictions
//   - events_published_total: Counter of bus events by type and result
//
// MCP tools:
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>), snapshot
// refreshes (connector.refresh) and provider calls (calendar.<operation>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: slotkeeper)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	metrics := provider.Metrics()
//	metrics.RecordCalendarOperation(ctx, instrumentation.OperationFreeBusy, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
