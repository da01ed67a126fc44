package registry

import (
	"context"
	"time"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/logging"
)

// Read operations create the tenant on first use with the registry
// defaults. They only fail for an empty tenant id.
//
// Auto-created tenants take a registry slot like any other, so reads for
// many unknown ids can evict explicitly registered or configured tenants.
// Later bookings for an evicted tenant fail as not registered until it is
// registered again.

// GetAvailableSlots returns the tenant's availability snapshot for the
// range, computing it now.
func (r *Registry) GetAvailableSlots(ctx context.Context, tenantID string, from, to time.Time) (*connector.Snapshot, error) {
	conn, err := r.GetOrCreate(ctx, tenantID, nil)
	if err != nil {
		return nil, err
	}
	return conn.GetAvailableSlots(ctx, from, to), nil
}

// GetSlotsForDate returns the tenant's slots for a YYYY-MM-DD date.
func (r *Registry) GetSlotsForDate(ctx context.Context, tenantID, date string) (connector.DaySlots, error) {
	conn, err := r.GetOrCreate(ctx, tenantID, nil)
	if err != nil {
		return connector.DaySlots{}, err
	}
	return conn.GetSlotsForDate(ctx, date), nil
}

// GetSlots returns a summary of the tenant's availability on date.
func (r *Registry) GetSlots(ctx context.Context, tenantID, date string) (connector.SlotsSummary, error) {
	conn, err := r.GetOrCreate(ctx, tenantID, nil)
	if err != nil {
		return connector.SlotsSummary{}, err
	}
	return conn.Summary(ctx, date), nil
}

// NextAvailableSlot returns the tenant's earliest available slot,
// optionally restricted to a service.
func (r *Registry) NextAvailableSlot(ctx context.Context, tenantID, serviceID string) (connector.NextSlot, bool, error) {
	conn, err := r.GetOrCreate(ctx, tenantID, nil)
	if err != nil {
		return connector.NextSlot{}, false, err
	}
	next, ok := conn.GetNextAvailableSlot(ctx, serviceID)
	return next, ok, nil
}

// Book books a slot for a registered tenant. Unknown tenants are not
// created.
func (r *Registry) Book(ctx context.Context, tenantID, date, clock string, details connector.BookingDetails) connector.BookingResult {
	conn, ok := r.Get(tenantID)
	if !ok {
		r.logger.Warn("booking for unregistered tenant", logging.Tenant(tenantID))
		return connector.NotRegisteredBooking()
	}
	return conn.Book(ctx, date, clock, details)
}

// Cancel cancels a booking for a registered tenant.
func (r *Registry) Cancel(ctx context.Context, tenantID, eventID string) connector.CancelResult {
	conn, ok := r.Get(tenantID)
	if !ok {
		r.logger.Warn("cancellation for unregistered tenant", logging.Tenant(tenantID))
		return connector.NotRegisteredCancel(eventID)
	}
	return conn.Cancel(ctx, eventID)
}

// Status returns the status of a registered tenant.
func (r *Registry) Status(tenantID string) (connector.Status, bool) {
	conn, ok := r.Get(tenantID)
	if !ok {
		return connector.Status{}, false
	}
	return conn.Status(), true
}
