package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/retry"
)

func TestBook_NotConnected(t *testing.T) {
	env := newTestEnv(t, testHours(), false)

	res := env.conn.Book(context.Background(), "2026-03-02", "10:05", BookingDetails{ClientName: "Amina"})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, FailureNotConnected, res.Error.Code)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, env.publisher.types())
}

func TestBook_InvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		clock   string
		details BookingDetails
	}{
		{name: "bad email", date: "2026-03-02", clock: "10:05", details: BookingDetails{ClientEmail: "not-an-email"}},
		{name: "negative duration", date: "2026-03-02", clock: "10:05", details: BookingDetails{DurationMinutes: -5}},
		{name: "bad date", date: "2026-13-40", clock: "10:05"},
		{name: "bad clock", date: "2026-03-02", clock: "25:00"},
		{name: "unknown service", date: "2026-03-02", clock: "10:05", details: BookingDetails{ServiceID: "massage"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testHours(), true)
			res := env.conn.Book(context.Background(), tt.date, tt.clock, tt.details)

			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, FailureInvalidRequest, res.Error.Code)
			assert.Empty(t, env.provider.inserted)
		})
	}
}

func TestBook_CreatesEvent(t *testing.T) {
	cfg := testHours()
	cfg.Timezone = "Africa/Casablanca"
	env := newTestEnv(t, cfg, true)

	res := env.conn.Book(context.Background(), "2026-03-02", "10:05", BookingDetails{
		ClientName:  "Amina",
		ClientEmail: "amina@example.com",
		ClientPhone: "+212600000000",
		ServiceID:   "cut",
	})

	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "evt-1", res.EventID)
	assert.Equal(t, "https://calendar.example.com/evt-1", res.HTMLLink)
	assert.Contains(t, res.Message, "Monday, March 2 at 10:05")
	assert.Contains(t, res.Message, "email")

	require.Len(t, env.provider.inserted, 1)
	in := env.provider.inserted[0]
	assert.Equal(t, "Appointment - Amina", in.Summary)
	assert.Equal(t, "Service: Haircut\nClient: Amina\nPhone: +212600000000\nEmail: amina@example.com", in.Description)
	assert.Equal(t, []string{"amina@example.com"}, in.Attendees)
	assert.Equal(t, calendar.SendUpdatesAll, in.SendUpdates)
	assert.Equal(t, "Africa/Casablanca", in.TimeZone)
	assert.Equal(t, 30*time.Minute, in.End.Sub(in.Start), "service duration applies")
	assert.Equal(t, "10:05", in.Start.Format("15:04"))
	assert.Equal(t, "Africa/Casablanca", in.Start.Location().String())
}

func TestBook_EventDefaults(t *testing.T) {
	env := newTestEnv(t, testHours(), true)

	res := env.conn.Book(context.Background(), "2026-03-02", "09:00", BookingDetails{})
	require.True(t, res.Success)
	assert.NotContains(t, res.Message, "email")

	in := env.provider.inserted[0]
	assert.Equal(t, "Appointment - Client", in.Summary)
	assert.Equal(t, "Service: N/A\nClient: N/A\nPhone: N/A", in.Description)
	assert.Empty(t, in.Attendees)
	assert.Equal(t, calendar.SendUpdatesNone, in.SendUpdates)
	assert.Equal(t, time.Hour, in.End.Sub(in.Start), "slot duration is the fallback")
}

func TestBook_ExplicitDurationAndSummary(t *testing.T) {
	env := newTestEnv(t, testHours(), true)

	res := env.conn.Book(context.Background(), "2026-03-02", "09:00", BookingDetails{
		ServiceID:       "cut",
		DurationMinutes: 45,
		Summary:         "VIP",
		Description:     "Bring photos",
	})
	require.True(t, res.Success)

	in := env.provider.inserted[0]
	assert.Equal(t, "VIP", in.Summary)
	assert.Equal(t, "Bring photos", in.Description)
	assert.Equal(t, 45*time.Minute, in.End.Sub(in.Start))
}

func TestBook_ForcesRefresh(t *testing.T) {
	env := newTestEnv(t, testHours(), true)
	ctx := context.Background()

	env.conn.GetSlotsForDate(ctx, "2026-03-02")
	require.Equal(t, 1, env.provider.queryCount())
	require.NotNil(t, env.conn.Snapshot())

	res := env.conn.Book(ctx, "2026-03-02", "10:05", BookingDetails{ClientName: "Amina"})
	require.True(t, res.Success)
	assert.Nil(t, env.conn.Snapshot(), "snapshot is dropped before Book returns")

	// The calendar now reports the new event as busy.
	env.provider.busy = []calendar.TimeRange{{Start: res.Start, End: res.End}}
	day := env.conn.GetSlotsForDate(ctx, "2026-03-02")
	assert.Equal(t, 2, env.provider.queryCount())
	assert.False(t, day.Slots[1].Available)

	assert.Equal(t, []string{events.TypeBookingConfirmed, events.TypeAvailabilityInvalidated}, env.publisher.types())
}

func TestBook_InvalidatesRefreshInFlight(t *testing.T) {
	env := newTestEnv(t, testHours(), true)
	ctx := context.Background()

	gate := env.provider.holdNextQuery()
	early := make(chan DaySlots, 1)
	go func() { early <- env.conn.GetSlotsForDate(ctx, "2026-03-02") }()
	<-gate.entered

	res := env.conn.Book(ctx, "2026-03-02", "10:05", BookingDetails{ClientName: "Amina"})
	require.True(t, res.Success)
	env.provider.setBusy(calendar.TimeRange{Start: res.Start, End: res.End})

	day := env.conn.GetSlotsForDate(ctx, "2026-03-02")
	assert.False(t, day.Slots[1].Available, "reads after Book do not join the earlier refresh")
	assert.Equal(t, 2, env.provider.queryCount())

	close(gate.release)
	before := <-early
	assert.True(t, before.Slots[1].Available, "the earlier read saw the calendar before the booking")

	again := env.conn.GetSlotsForDate(ctx, "2026-03-02")
	assert.False(t, again.Slots[1].Available, "the earlier refresh is not published")
	assert.Equal(t, 2, env.provider.queryCount())
}

func TestBook_ProviderRejected(t *testing.T) {
	env := newTestEnv(t, testHours(), true)
	env.provider.insertErr = &retry.StatusError{Code: 400, Reason: "invalid"}
	env.conn.GetAvailableSlots(context.Background(), testNow, time.Time{})

	res := env.conn.Book(context.Background(), "2026-03-02", "10:05", BookingDetails{})

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, FailureProviderRejected, res.Error.Code)
	assert.NotNil(t, env.conn.Snapshot(), "failed bookings keep the snapshot")
	assert.Empty(t, env.publisher.types())
}

func TestBook_RateLimitedReportsReason(t *testing.T) {
	env := newTestEnv(t, testHours(), true)
	env.provider.insertErr = retry.ErrRateLimited

	res := env.conn.Book(context.Background(), "2026-03-02", "10:05", BookingDetails{})

	require.NotNil(t, res.Error)
	assert.Equal(t, FailureProviderRejected, res.Error.Code)
	assert.Contains(t, res.Error.Message, "rate limit")
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t, testHours(), true)
	env.conn.GetAvailableSlots(context.Background(), testNow, time.Time{})

	res := env.conn.Cancel(context.Background(), "evt-1")

	require.True(t, res.Success)
	assert.Equal(t, []string{"evt-1"}, env.provider.deleted)
	assert.Nil(t, env.conn.Snapshot())
	assert.Equal(t, []string{events.TypeBookingCancelled, events.TypeAvailabilityInvalidated}, env.publisher.types())
}

func TestCancel_Failures(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		env := newTestEnv(t, testHours(), false)
		res := env.conn.Cancel(context.Background(), "evt-1")
		require.NotNil(t, res.Error)
		assert.Equal(t, FailureNotConnected, res.Error.Code)
	})

	t.Run("empty id", func(t *testing.T) {
		env := newTestEnv(t, testHours(), true)
		res := env.conn.Cancel(context.Background(), "  ")
		require.NotNil(t, res.Error)
		assert.Equal(t, FailureInvalidRequest, res.Error.Code)
	})

	t.Run("provider error", func(t *testing.T) {
		env := newTestEnv(t, testHours(), true)
		env.provider.deleteErr = errors.New("not found")
		res := env.conn.Cancel(context.Background(), "evt-1")
		require.NotNil(t, res.Error)
		assert.Equal(t, FailureProviderRejected, res.Error.Code)
		assert.Empty(t, env.publisher.types())
	})
}

func TestSummary(t *testing.T) {
	t.Run("lists the first five times", func(t *testing.T) {
		env := newTestEnv(t, testHours(), false)
		s := env.conn.Summary(context.Background(), "2026-03-02")

		assert.Equal(t, 8, s.AvailableCount)
		assert.Equal(t, "For Monday, March 2, we have openings at 09:00, 10:05, 11:10, 12:15, 13:20 and 3 more. Which time works best for you?", s.Text)
		assert.Nil(t, s.NextAvailable)
	})

	t.Run("caps offered slots at the daily maximum", func(t *testing.T) {
		tests := []struct {
			name      string
			max       int
			wantSlots int
			wantText  string
		}{
			{
				name:      "below the listed times",
				max:       3,
				wantSlots: 3,
				wantText:  "For Monday, March 2, we have openings at 09:00, 10:05, 11:10 and 5 more. Which time works best for you?",
			},
			{
				name:      "above the listed times",
				max:       6,
				wantSlots: 6,
				wantText:  "For Monday, March 2, we have openings at 09:00, 10:05, 11:10, 12:15, 13:20 and 3 more. Which time works best for you?",
			},
			{
				name:      "above the day's slots",
				max:       20,
				wantSlots: 8,
				wantText:  "For Monday, March 2, we have openings at 09:00, 10:05, 11:10, 12:15, 13:20 and 3 more. Which time works best for you?",
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := testHours()
				cfg.MaxSlotsPerDay = tt.max
				env := newTestEnv(t, cfg, false)
				s := env.conn.Summary(context.Background(), "2026-03-02")

				assert.Equal(t, 8, s.AvailableCount)
				assert.Len(t, s.Slots, tt.wantSlots)
				assert.Equal(t, "09:00", s.Slots[0].Time)
				assert.Equal(t, tt.wantText, s.Text)
			})
		}
	})

	t.Run("points to the next available slot", func(t *testing.T) {
		env := newTestEnv(t, testHours(), true)
		env.provider.busy = []calendar.TimeRange{
			{Start: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)},
		}
		s := env.conn.Summary(context.Background(), "2026-03-02")

		assert.Zero(t, s.AvailableCount)
		require.NotNil(t, s.NextAvailable)
		assert.Equal(t, "2026-03-03", s.NextAvailable.Date)
		assert.Equal(t, "No openings on Monday, March 2. The next available slot is Tuesday, March 3 at 09:00.", s.Text)
	})

	t.Run("nothing in the window", func(t *testing.T) {
		cfg := testHours()
		cfg.LookAheadDays = 2
		env := newTestEnv(t, cfg, true)
		env.provider.busy = []calendar.TimeRange{
			{Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		}
		s := env.conn.Summary(context.Background(), "2026-03-02")

		assert.Nil(t, s.NextAvailable)
		assert.Equal(t, "No openings in the next 2 days.", s.Text)
	})

	t.Run("defaults to today", func(t *testing.T) {
		env := newTestEnv(t, testHours(), false)
		s := env.conn.Summary(context.Background(), "")
		assert.Equal(t, "2026-03-01", s.Date)
	})
}
