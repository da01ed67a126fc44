package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
	"github.com/teemow/slotkeeper/internal/retry"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// Snapshot is computed availability over a date range. A published
// snapshot is never modified.
type Snapshot struct {
	// AvailableDates lists, ascending, every date with at least one
	// available slot.
	AvailableDates []string `json:"availableDates"`
	// SlotsByDate holds the resolved slots of every work day in range.
	SlotsByDate map[string][]schedule.Slot `json:"slotsByDate"`
	LastSync    time.Time                  `json:"lastSync"`
	Source      string                     `json:"source"`
	Degraded    bool                       `json:"degraded"`
	RangeStart  string                     `json:"rangeStart"`
	RangeEnd    string                     `json:"rangeEnd"`
}

// covers reports whether date (a date key) lies within the snapshot range.
func (s *Snapshot) covers(date string) bool {
	return s != nil && date >= s.RangeStart && date <= s.RangeEnd
}

// DaySlots is the availability of a single date.
type DaySlots struct {
	Date     string          `json:"date"`
	Slots    []schedule.Slot `json:"slots"`
	Source   string          `json:"source"`
	Degraded bool            `json:"degraded"`
}

// Available returns the bookable slots.
func (d DaySlots) Available() []schedule.Slot {
	var out []schedule.Slot
	for _, s := range d.Slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// NextSlot is the earliest bookable slot found in the look-ahead window.
type NextSlot struct {
	Date     string        `json:"date"`
	Slot     schedule.Slot `json:"slot"`
	Source   string        `json:"source"`
	Degraded bool          `json:"degraded"`
}

// FetchBusyIntervals returns the tenant's busy intervals in [start, end).
// It returns no intervals and no error when disconnected, for an empty
// range, or when the calendar reports an in-band error. A transport failure
// after retries is returned wrapped in ErrSourceUnavailable.
func (c *Connector) FetchBusyIntervals(ctx context.Context, start, end time.Time) ([]schedule.BusyInterval, error) {
	provider := c.currentProvider()
	if provider == nil {
		return nil, nil
	}
	if !start.Before(end) {
		c.logger.Warn("ignoring empty busy range",
			slog.Time("start", start),
			slog.Time("end", end))
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	query := calendar.FreeBusyQuery{
		TimeMin:     start,
		TimeMax:     end,
		TimeZone:    c.cfg.Timezone,
		CalendarIDs: []string{c.cfg.CalendarID},
	}
	infos, err := retry.Do(ctx, c.retryPolicy(ctx, instrumentation.OperationFreeBusy),
		func(ctx context.Context) ([]calendar.FreeBusyInfo, error) {
			return provider.QueryFreeBusy(ctx, query)
		})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	info, ok := c.calendarInfo(infos)
	if !ok {
		c.logger.Warn("calendar missing from free/busy response", logging.Calendar(c.cfg.CalendarID))
		return nil, nil
	}
	if len(info.Errors) > 0 {
		c.logger.Warn("calendar reported free/busy errors",
			logging.Calendar(info.Calendar),
			slog.String("reasons", strings.Join(info.Errors, ",")))
		return nil, nil
	}
	if info.Malformed > 0 {
		c.logger.Warn("skipping unparsable busy entries",
			logging.Calendar(info.Calendar),
			slog.Int("count", info.Malformed))
	}

	busy := make([]schedule.BusyInterval, 0, len(info.Busy))
	for _, r := range info.Busy {
		busy = append(busy, schedule.BusyInterval{Start: r.Start, End: r.End})
	}
	busy, dropped := schedule.SanitizeBusy(busy)
	if dropped > 0 {
		c.logger.Warn("dropping invalid busy intervals",
			logging.Calendar(info.Calendar),
			slog.Int("count", dropped))
	}
	return busy, nil
}

func (c *Connector) calendarInfo(infos []calendar.FreeBusyInfo) (calendar.FreeBusyInfo, bool) {
	for _, info := range infos {
		if info.Calendar == c.cfg.CalendarID {
			return info, true
		}
	}
	if len(infos) == 1 {
		return infos[0], true
	}
	return calendar.FreeBusyInfo{}, false
}

// GetAvailableSlots computes availability for every date from from to to,
// inclusive, and publishes it as the current snapshot. A zero to means the
// tenant's look-ahead window. If the external calendar cannot be reached
// the snapshot is computed from business hours and marked degraded.
func (c *Connector) GetAvailableSlots(ctx context.Context, from, to time.Time) *Snapshot {
	gen, _ := c.cached()
	return c.refreshSnapshot(ctx, from, to, gen)
}

// dayRange returns the first and last day of [from, to] in the tenant's
// location. A zero to means the look-ahead window.
func (c *Connector) dayRange(from, to time.Time) (time.Time, time.Time) {
	if to.IsZero() {
		to = from.AddDate(0, 0, c.cfg.LookAheadDays)
	}
	first := schedule.StartOfDay(from, c.loc)
	last := schedule.StartOfDay(to, c.loc)
	if last.Before(first) {
		c.logger.Warn("availability range ends before it starts",
			logging.Date(schedule.DateKey(first, c.loc)),
			slog.String("end", schedule.DateKey(last, c.loc)))
		last = first
	}
	return first, last
}

// buildSnapshot resolves the slots of every work day in [first, last].
func (c *Connector) buildSnapshot(first, last, now time.Time, busy []schedule.BusyInterval, source string, degraded bool) *Snapshot {
	snap := &Snapshot{
		SlotsByDate: make(map[string][]schedule.Slot),
		LastSync:    now,
		Source:      source,
		Degraded:    degraded,
		RangeStart:  schedule.DateKey(first, c.loc),
		RangeEnd:    schedule.DateKey(last, c.loc),
	}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !c.cfg.IsWorkDay(day.Weekday()) {
			continue
		}
		key := schedule.DateKey(day, c.loc)
		slots := schedule.ResolveBusy(schedule.GenerateDaySlots(day, c.cfg, now), busy)
		snap.SlotsByDate[key] = slots
		if schedule.HasAvailable(slots) {
			snap.AvailableDates = append(snap.AvailableDates, key)
		}
	}
	return snap
}

// abandoned reports whether a fetch failed because its context ended
// rather than because the calendar is unavailable.
func abandoned(ctx context.Context, err error) bool {
	return err != nil && (ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded))
}

// refreshSnapshot computes availability and publishes it into cache
// generation gen. Results of abandoned fetches are returned but never
// published.
func (c *Connector) refreshSnapshot(ctx context.Context, from, to time.Time, gen uint64) *Snapshot {
	ctx, span := instrumentation.StartSpan(ctx, "connector.refresh",
		attribute.String(instrumentation.SpanAttrTenant, c.tenantID))
	defer span.End()

	now := c.opts.Now()
	first, last := c.dayRange(from, to)

	connected := c.IsConnected()
	busy, err := c.FetchBusyIntervals(ctx, first, last.AddDate(0, 0, 1))

	source := SourceStatic
	status := instrumentation.StatusSuccess
	switch {
	case err != nil:
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("calendar unavailable, serving static availability", logging.Err(err))
	case connected:
		source = SourceExternal
	}
	snap := c.buildSnapshot(first, last, now, busy, source, err != nil)

	switch {
	case abandoned(ctx, err):
		c.logger.Debug("not caching availability from an abandoned fetch")
	case !c.storeSnapshot(gen, snap):
		c.logger.Debug("discarding availability computed before invalidation")
	}

	span.SetAttributes(
		attribute.String(instrumentation.SpanAttrSource, snap.Source),
		attribute.Int(instrumentation.SpanAttrDates, len(snap.AvailableDates)),
	)
	if err == nil {
		instrumentation.SetSpanSuccess(span)
	}
	c.opts.Metrics.RecordRefresh(ctx, c.tenantID, snap.Source, status)
	c.logger.Debug("availability refreshed",
		slog.String("source", snap.Source),
		slog.Bool("degraded", snap.Degraded),
		slog.Int("available_dates", len(snap.AvailableDates)))
	return snap
}

// Snapshot returns the current snapshot without refreshing. It may be nil.
func (c *Connector) Snapshot() *Snapshot {
	_, snap := c.cached()
	return snap
}

func (c *Connector) isStale(snap *Snapshot) bool {
	return snap == nil || c.opts.Now().Sub(snap.LastSync) > c.opts.StaleAfter
}

// snapshotFor returns a fresh snapshot covering day, refreshing from day
// when needed. Concurrent refreshes for the same start date and cache
// generation share one computation, which outlives any single caller. A
// caller whose context ends first gets degraded static availability.
func (c *Connector) snapshotFor(ctx context.Context, day time.Time) *Snapshot {
	key := schedule.DateKey(day, c.loc)
	gen, snap := c.cached()
	if !c.isStale(snap) && snap.covers(key) {
		c.opts.Metrics.RecordCacheLookup(ctx, c.tenantID, instrumentation.CacheHit)
		return snap
	}
	c.opts.Metrics.RecordCacheLookup(ctx, c.tenantID, instrumentation.CacheMiss)

	flight := c.refresh.DoChan(fmt.Sprintf("%s@%d", key, gen), func() (interface{}, error) {
		return c.refreshSnapshot(context.WithoutCancel(ctx), day, time.Time{}, gen), nil
	})
	select {
	case res := <-flight:
		return res.Val.(*Snapshot)
	case <-ctx.Done():
		c.logger.Warn("availability refresh outlived the caller", logging.Err(ctx.Err()))
		first, last := c.dayRange(day, time.Time{})
		return c.buildSnapshot(first, last, c.opts.Now(), nil, SourceStatic, true)
	}
}

// GetSlotsForDate returns the resolved slots for a YYYY-MM-DD date. A
// malformed date yields no slots.
func (c *Connector) GetSlotsForDate(ctx context.Context, date string) DaySlots {
	day, err := schedule.ParseDate(date, c.loc)
	if err != nil {
		c.logger.Warn("invalid availability date", logging.Date(date), logging.Err(err))
		return DaySlots{Date: date, Slots: []schedule.Slot{}, Source: c.Status().Source}
	}

	snap := c.snapshotFor(ctx, day)
	slots := append([]schedule.Slot{}, snap.SlotsByDate[date]...)
	return DaySlots{
		Date:     date,
		Slots:    slots,
		Source:   snap.Source,
		Degraded: snap.Degraded,
	}
}

// GetNextAvailableSlot returns the earliest available slot from today on.
// A non-empty serviceID restricts the search to slots offering that service.
func (c *Connector) GetNextAvailableSlot(ctx context.Context, serviceID string) (NextSlot, bool) {
	today := schedule.StartOfDay(c.opts.Now(), c.loc)
	snap := c.snapshotFor(ctx, today)
	todayKey := schedule.DateKey(today, c.loc)

	for _, date := range snap.AvailableDates {
		if date < todayKey {
			continue
		}
		for _, slot := range snap.SlotsByDate[date] {
			if slot.Available && slot.OffersService(serviceID) {
				return NextSlot{
					Date:     date,
					Slot:     slot,
					Source:   snap.Source,
					Degraded: snap.Degraded,
				}, true
			}
		}
	}
	return NextSlot{}, false
}
