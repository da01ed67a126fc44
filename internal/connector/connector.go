// Package connector computes appointment availability for a single tenant.
//
// A Connector combines the tenant's business hours with busy intervals from
// an external calendar. When no calendar is connected it serves availability
// computed from business hours alone ("static" mode). Computed availability
// is cached as an immutable Snapshot and refreshed lazily.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
	"github.com/teemow/slotkeeper/internal/retry"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// Defaults for Options.
const (
	DefaultStaleAfter  = 5 * time.Minute
	DefaultCallTimeout = 10 * time.Second
)

// Availability sources.
const (
	SourceExternal = "external"
	SourceStatic   = "static"
)

// ErrSourceUnavailable is returned when the external calendar could not be
// reached after retries.
var ErrSourceUnavailable = errors.New("availability source unavailable")

// State is the connection state of a Connector.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// ProviderFactory builds a calendar provider from resolved credentials.
type ProviderFactory func(ctx context.Context, creds google.Credentials) (calendar.Provider, error)

// Options holds the collaborators shared by all connectors.
type Options struct {
	Credentials google.CredentialProvider
	Factory     ProviderFactory
	Publisher   events.Publisher
	Retry       retry.Policy
	StaleAfter  time.Duration
	CallTimeout time.Duration
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Publisher == nil {
		o.Publisher = events.NopPublisher{}
	}
	if o.Retry.InitialDelay == 0 && o.Retry.MaxDelay == 0 && o.Retry.MaxRetries == 0 {
		o.Retry = retry.DefaultPolicy()
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Connector serves availability and bookings for one tenant.
type Connector struct {
	tenantID string
	cfg      schedule.BusinessHoursConfig
	loc      *time.Location
	opts     Options
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	provider calendar.Provider

	cache   atomic.Pointer[cacheEntry]
	refresh singleflight.Group
}

// cacheEntry is the published snapshot and the cache generation it belongs
// to. Invalidation starts a new generation; a refresh may only publish into
// the generation it started in.
type cacheEntry struct {
	gen  uint64
	snap *Snapshot
}

// New creates a disconnected connector. The configuration is copied after
// defaults are applied and must be valid.
func New(tenantID string, cfg schedule.BusinessHoursConfig, opts Options) (*Connector, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid business hours for %s: %w", tenantID, err)
	}

	opts = opts.withDefaults()
	c := &Connector{
		tenantID: tenantID,
		cfg:      cfg,
		loc:      cfg.Location(),
		opts:     opts,
		logger:   logging.WithTenant(opts.Logger, tenantID),
		state:    StateDisconnected,
	}
	c.cache.Store(&cacheEntry{})
	return c, nil
}

// TenantID returns the tenant this connector serves.
func (c *Connector) TenantID() string { return c.tenantID }

// Config returns a copy of the business hours.
func (c *Connector) Config() schedule.BusinessHoursConfig { return c.cfg.WithDefaults() }

// State returns the current connection state.
func (c *Connector) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether an external calendar is attached.
func (c *Connector) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Connector) currentProvider() calendar.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected {
		return nil
	}
	return c.provider
}

func (c *Connector) setState(state State, provider calendar.Provider) {
	c.mu.Lock()
	c.state = state
	c.provider = provider
	c.mu.Unlock()
}

// Connect resolves the tenant's credentials and attaches a calendar
// provider. Missing credentials are not an error: the connector stays in
// static mode. It reports whether the connector ended up connected.
func (c *Connector) Connect(ctx context.Context) bool {
	c.setState(StateConnecting, nil)

	if c.opts.Credentials == nil || c.opts.Factory == nil {
		c.logger.Info("no calendar configured, serving static availability")
		c.setState(StateDisconnected, nil)
		return false
	}

	creds, err := c.opts.Credentials.CredentialsForTenant(ctx, c.tenantID)
	switch {
	case errors.Is(err, google.ErrNoCredentials), err == nil && (creds == nil || !creds.Complete()):
		c.logger.Info("no calendar credentials, serving static availability")
		c.setState(StateDisconnected, nil)
		return false
	case err != nil:
		c.logger.Warn("failed to resolve calendar credentials", logging.Err(err))
		c.setState(StateDisconnected, nil)
		return false
	}

	provider, err := c.opts.Factory(ctx, *creds)
	if err != nil {
		c.logger.Warn("failed to connect calendar",
			logging.Calendar(c.cfg.CalendarID),
			logging.Err(err))
		c.setState(StateDisconnected, nil)
		return false
	}

	c.setState(StateConnected, provider)
	c.Invalidate()
	c.logger.Info("calendar connected", logging.Calendar(c.cfg.CalendarID))
	return true
}

// Disconnect detaches the provider and drops cached availability.
func (c *Connector) Disconnect() {
	c.setState(StateDisconnected, nil)
	c.Invalidate()
}

// Invalidate drops cached availability so the next read refreshes.
// Refreshes already in flight can no longer publish their result.
func (c *Connector) Invalidate() {
	for {
		old := c.cache.Load()
		if c.cache.CompareAndSwap(old, &cacheEntry{gen: old.gen + 1}) {
			return
		}
	}
}

// cached returns the current generation and snapshot. The snapshot may be
// nil.
func (c *Connector) cached() (uint64, *Snapshot) {
	e := c.cache.Load()
	return e.gen, e.snap
}

// storeSnapshot publishes snap unless the cache was invalidated after gen
// was read. It reports whether snap was published.
func (c *Connector) storeSnapshot(gen uint64, snap *Snapshot) bool {
	for {
		old := c.cache.Load()
		if old.gen != gen {
			return false
		}
		if c.cache.CompareAndSwap(old, &cacheEntry{gen: gen, snap: snap}) {
			return true
		}
	}
}

// Status describes a connector for operators.
type Status struct {
	TenantID    string    `json:"tenantId"`
	State       State     `json:"state"`
	Connected   bool      `json:"connected"`
	CalendarID  string    `json:"calendarId"`
	Source      string    `json:"source"`
	Timezone    string    `json:"timezone"`
	LastSync    time.Time `json:"lastSync"`
	CachedDates int       `json:"cachedDates"`
	Degraded    bool      `json:"degraded"`
	Services    int       `json:"services"`
}

// Status returns the connector's current status.
func (c *Connector) Status() Status {
	state := c.State()
	st := Status{
		TenantID:   c.tenantID,
		State:      state,
		Connected:  state == StateConnected,
		CalendarID: c.cfg.CalendarID,
		Source:     SourceStatic,
		Timezone:   c.cfg.Timezone,
		Services:   len(c.cfg.Services),
	}
	if st.Connected {
		st.Source = SourceExternal
	}
	if snap := c.Snapshot(); snap != nil {
		st.Source = snap.Source
		st.LastSync = snap.LastSync
		st.CachedDates = len(snap.AvailableDates)
		st.Degraded = snap.Degraded
	}
	return st
}

// retryPolicy returns the configured policy with retry logging and metrics
// attached for one operation.
func (c *Connector) retryPolicy(ctx context.Context, operation string) retry.Policy {
	p := c.opts.Retry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.opts.Metrics.RecordCalendarRetry(ctx, operation)
		c.logger.Warn("calendar rate limited, retrying",
			logging.Operation(operation),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			logging.Err(err))
	}
	return p
}
