package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/schedule"
)

type stubProvider struct{}

func (stubProvider) QueryFreeBusy(_ context.Context, q calendar.FreeBusyQuery) ([]calendar.FreeBusyInfo, error) {
	return []calendar.FreeBusyInfo{{Calendar: q.CalendarIDs[0]}}, nil
}

func (stubProvider) InsertEvent(_ context.Context, _ string, in calendar.EventInput) (*calendar.EventSummary, error) {
	return &calendar.EventSummary{ID: "evt-1", Start: in.Start, End: in.End}, nil
}

func (stubProvider) DeleteEvent(context.Context, string, string) error { return nil }

// allCredentials hands out complete credentials for every tenant.
type allCredentials struct {
	calls atomic.Int64
}

func (a *allCredentials) CredentialsForTenant(context.Context, string) (*google.Credentials, error) {
	a.calls.Add(1)
	return &google.Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"}, nil
}

func newTestRegistry(capacity int, connected bool) *Registry {
	var creds google.CredentialProvider = google.StaticCredentialProvider{}
	if connected {
		creds = &allCredentials{}
	}
	return New(Config{
		Capacity: capacity,
		Connector: connector.Options{
			Credentials: creds,
			Factory: func(context.Context, google.Credentials) (calendar.Provider, error) {
				return stubProvider{}, nil
			},
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			Now: func() time.Time {
				return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			},
		},
	})
}

func hours() schedule.BusinessHoursConfig {
	cfg := schedule.DefaultBusinessHours()
	cfg.Timezone = "UTC"
	cfg.MinAdvanceBookingMinutes = 0
	return cfg
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	assert.Equal(t, DefaultCapacity, r.Capacity())
	assert.Equal(t, schedule.DefaultTimezone, r.DefaultHours().Timezone)
	assert.Zero(t, r.Len())
}

func TestRegister_Errors(t *testing.T) {
	r := newTestRegistry(2, false)

	_, err := r.Register(context.Background(), "", hours())
	assert.ErrorIs(t, err, ErrEmptyTenantID)

	bad := hours()
	bad.Start = "nine"
	_, err = r.Register(context.Background(), "salon-1", bad)
	assert.Error(t, err)
	assert.Zero(t, r.Len())
}

func TestRegister_EvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, true)

	var conns []*connector.Connector
	for i := 0; i < 3; i++ {
		c, err := r.Register(ctx, fmt.Sprintf("t%d", i), hours())
		require.NoError(t, err)
		require.True(t, c.IsConnected())
		conns = append(conns, c)
	}
	// Reads do not change the eviction order.
	_, ok := r.Get("t0")
	require.True(t, ok)

	_, err := r.Register(ctx, "t3", hours())
	require.NoError(t, err)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"t1", "t2", "t3"}, r.Tenants())
	_, ok = r.Get("t0")
	assert.False(t, ok)
	assert.False(t, conns[0].IsConnected(), "the evicted connector is disconnected")
	assert.True(t, conns[1].IsConnected())
}

func TestGetOrCreate_AutoCreatedTenantsEvictRegistered(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(2, true)

	salon, err := r.Register(ctx, "salon", hours())
	require.NoError(t, err)

	for _, id := range []string{"unknown-1", "unknown-2"} {
		_, err := r.GetSlotsForDate(ctx, id, "2026-03-02")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"unknown-1", "unknown-2"}, r.Tenants())
	assert.False(t, salon.IsConnected())
	res := r.Book(ctx, "salon", "2026-03-02", "10:05", connector.BookingDetails{})
	require.NotNil(t, res.Error)
	assert.Equal(t, connector.FailureTenantNotRegistered, res.Error.Code)
}

func TestRegister_SizeNeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(5, false)
	for i := 0; i < 40; i++ {
		_, err := r.Register(ctx, fmt.Sprintf("tenant-%02d", i), hours())
		require.NoError(t, err)
		require.LessOrEqual(t, r.Len(), r.Capacity())
	}
	assert.Equal(t, []string{"tenant-35", "tenant-36", "tenant-37", "tenant-38", "tenant-39"}, r.Tenants())
}

func TestRegister_ReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, true)

	first, err := r.Register(ctx, "a", hours())
	require.NoError(t, err)
	_, err = r.Register(ctx, "b", hours())
	require.NoError(t, err)

	updated := hours()
	updated.SlotDurationMinutes = 30
	second, err := r.Register(ctx, "a", updated)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.False(t, first.IsConnected(), "the replaced connector is disconnected")
	assert.Equal(t, []string{"a", "b"}, r.Tenants(), "registration order is kept")

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 30, got.Config().SlotDurationMinutes)
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, false)

	a, err := r.GetOrCreate(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultSlotDuration, a.Config().SlotDurationMinutes)

	again, err := r.GetOrCreate(ctx, "a", &schedule.BusinessHoursConfig{SlotDurationMinutes: 15})
	require.NoError(t, err)
	assert.Same(t, a, again, "an existing connector is returned as is")

	_, err = r.GetOrCreate(ctx, "", nil)
	assert.ErrorIs(t, err, ErrEmptyTenantID)
}

func TestGetOrCreate_ConcurrentCallersShareOneConnector(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(10, true)

	const callers = 32
	results := make([]*connector.Connector, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.GetOrCreate(ctx, "shared", nil)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
	winner, ok := r.Get("shared")
	require.True(t, ok)
	assert.True(t, winner.IsConnected())
	for _, c := range results {
		assert.Same(t, winner, c)
	}
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, true)
	c, err := r.Register(ctx, "a", hours())
	require.NoError(t, err)

	assert.True(t, r.Unregister(ctx, "a"))
	assert.False(t, c.IsConnected())
	assert.Zero(t, r.Len())
	assert.False(t, r.Unregister(ctx, "a"))
}

func TestStatsAndClose(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(5, true)
	a, _ := r.Register(ctx, "a", hours())
	_, _ = r.Register(ctx, "b", hours())
	a.Disconnect()

	assert.Equal(t, Stats{Total: 2, Connected: 1, Capacity: 5}, r.Stats())

	r.Close(ctx)
	assert.Zero(t, r.Len())
	assert.Equal(t, Stats{Capacity: 5}, r.Stats())
}

func TestBookAndCancel_UnknownTenant(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, true)

	res := r.Book(ctx, "ghost", "2026-03-02", "10:05", connector.BookingDetails{})
	require.NotNil(t, res.Error)
	assert.Equal(t, connector.FailureTenantNotRegistered, res.Error.Code)

	cres := r.Cancel(ctx, "ghost", "evt-1")
	require.NotNil(t, cres.Error)
	assert.Equal(t, connector.FailureTenantNotRegistered, cres.Error.Code)

	assert.Zero(t, r.Len(), "writes never create tenants")
}

func TestRoutedOperations(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(3, true)
	_, err := r.Register(ctx, "a", hours())
	require.NoError(t, err)

	day, err := r.GetSlotsForDate(ctx, "a", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, connector.SourceExternal, day.Source)
	assert.NotEmpty(t, day.Slots)

	summary, err := r.GetSlots(ctx, "a", "2026-03-02")
	require.NoError(t, err)
	assert.Positive(t, summary.AvailableCount)
	assert.NotEmpty(t, summary.Text)

	next, ok, err := r.NextAvailableSlot(ctx, "a", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2026-03-02", next.Date)

	snap, err := r.GetAvailableSlots(ctx, "a", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-02", "2026-03-03"}, snap.AvailableDates)

	res := r.Book(ctx, "a", "2026-03-02", "10:05", connector.BookingDetails{ClientName: "Amina"})
	assert.True(t, res.Success)
	assert.Equal(t, "evt-1", res.EventID)

	cres := r.Cancel(ctx, "a", "evt-1")
	assert.True(t, cres.Success)

	st, ok := r.Status("a")
	require.True(t, ok)
	assert.True(t, st.Connected)

	// Reads create unknown tenants with the defaults.
	_, err = r.GetSlotsForDate(ctx, "b", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Tenants())
}
