// Package server holds the runtime pieces shared by the MCP transports.
//
// ServerContext owns the tenant registry and the event publisher for the
// lifetime of the process. Shutdown disconnects every tenant and drains
// queued events.
//
// HealthChecker serves the /healthz, /readyz and /healthz/detailed probes,
// and MetricsServer exposes Prometheus metrics on a dedicated port.
package server
