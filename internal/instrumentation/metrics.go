package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrStatus    = "status"
	attrOperation = "operation"
	attrResult    = "result"
	attrSource    = "source"
	attrTool      = "tool"
	attrTenant    = "tenant"
	attrEventType = "event_type"
)

// Metrics provides methods for recording observability metrics.
// A zero Metrics (or a nil pointer) records nothing.
type Metrics struct {
	calendarOperationsTotal   metric.Int64Counter
	calendarOperationDuration metric.Float64Histogram
	calendarRetriesTotal      metric.Int64Counter

	refreshesTotal    metric.Int64Counter
	cacheLookupsTotal metric.Int64Counter
	bookingsTotal     metric.Int64Counter

	registryTenants   metric.Int64UpDownCounter
	registryEvictions metric.Int64Counter

	eventsPublishedTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// detailedLabels controls whether the tenant label is included
	detailedLabels bool
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	counter := func(name, desc, unit string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		if err != nil {
			err = fmt.Errorf("failed to create %s counter: %w", name, err)
		}
		return c
	}
	histogram := func(name, desc string, bounds ...float64) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(bounds...),
		)
		if err != nil {
			err = fmt.Errorf("failed to create %s histogram: %w", name, err)
		}
		return h
	}

	m.calendarOperationsTotal = counter("calendar_api_operations_total", "Total number of calendar provider operations", "{operation}")
	m.calendarOperationDuration = histogram("calendar_api_operation_duration_seconds", "Calendar provider operation duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)
	m.calendarRetriesTotal = counter("calendar_api_retries_total", "Total number of rate-limit retries against the calendar provider", "{retry}")
	m.refreshesTotal = counter("availability_refreshes_total", "Total number of availability snapshot refreshes", "{refresh}")
	m.cacheLookupsTotal = counter("availability_cache_lookups_total", "Total number of availability snapshot lookups", "{lookup}")
	m.bookingsTotal = counter("bookings_total", "Total number of booking and cancellation attempts", "{attempt}")
	m.registryEvictions = counter("registry_evictions_total", "Total number of tenants evicted at capacity", "{tenant}")
	m.eventsPublishedTotal = counter("events_published_total", "Total number of bus events by outcome", "{event}")
	m.toolInvocationsTotal = counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}")
	m.toolDuration = histogram("mcp_tool_duration_seconds", "MCP tool execution duration in seconds",
		0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)
	if err != nil {
		return nil, err
	}

	m.registryTenants, err = meter.Int64UpDownCounter(
		"registry_tenants",
		metric.WithDescription("Number of tenants currently registered"),
		metric.WithUnit("{tenant}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry_tenants gauge: %w", err)
	}

	return m, nil
}

func (m *Metrics) withTenant(attrs []attribute.KeyValue, tenantID string) []attribute.KeyValue {
	if m.detailedLabels && tenantID != "" {
		attrs = append(attrs, attribute.String(attrTenant, tenantID))
	}
	return attrs
}

// RecordCalendarOperation records one calendar provider call.
func (m *Metrics) RecordCalendarOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m == nil || m.calendarOperationsTotal == nil || m.calendarOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.calendarOperationsTotal.Add(ctx, 1, attrs)
	m.calendarOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordCalendarRetry records a rate-limit retry of a provider call.
func (m *Metrics) RecordCalendarRetry(ctx context.Context, operation string) {
	if m == nil || m.calendarRetriesTotal == nil {
		return // Instrumentation not initialized
	}
	m.calendarRetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOperation, operation)))
}

// RecordRefresh records a snapshot refresh with its source ("external",
// "static") and status.
func (m *Metrics) RecordRefresh(ctx context.Context, tenantID, source, status string) {
	if m == nil || m.refreshesTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := m.withTenant([]attribute.KeyValue{
		attribute.String(attrSource, source),
		attribute.String(attrStatus, status),
	}, tenantID)
	m.refreshesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheLookup records whether a read was served from the snapshot.
func (m *Metrics) RecordCacheLookup(ctx context.Context, tenantID, result string) {
	if m == nil || m.cacheLookupsTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := m.withTenant([]attribute.KeyValue{attribute.String(attrResult, result)}, tenantID)
	m.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBooking records a booking or cancellation attempt. result is
// "success" or the failure code.
func (m *Metrics) RecordBooking(ctx context.Context, tenantID, operation, result string) {
	if m == nil || m.bookingsTotal == nil {
		return // Instrumentation not initialized
	}
	attrs := m.withTenant([]attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrResult, result),
	}, tenantID)
	m.bookingsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// AddRegisteredTenants adjusts the registered tenants gauge by delta.
func (m *Metrics) AddRegisteredTenants(ctx context.Context, delta int64) {
	if m == nil || m.registryTenants == nil {
		return // Instrumentation not initialized
	}
	m.registryTenants.Add(ctx, delta)
}

// RecordEviction records a capacity eviction.
func (m *Metrics) RecordEviction(ctx context.Context) {
	if m == nil || m.registryEvictions == nil {
		return // Instrumentation not initialized
	}
	m.registryEvictions.Add(ctx, 1)
}

// RecordEventPublished records the outcome of publishing a bus event.
func (m *Metrics) RecordEventPublished(ctx context.Context, eventType, result string) {
	if m == nil || m.eventsPublishedTotal == nil {
		return // Instrumentation not initialized
	}
	m.eventsPublishedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrEventType, eventType),
		attribute.String(attrResult, result),
	))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolInvocationsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
