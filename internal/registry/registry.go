// Package registry keeps one availability connector per tenant, bounded by
// a fixed capacity.
package registry

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
	"github.com/teemow/slotkeeper/internal/schedule"
)

// DefaultCapacity is the maximum number of tenants held when none is
// configured.
const DefaultCapacity = 200

// ErrEmptyTenantID is returned for registrations without a tenant id.
var ErrEmptyTenantID = errors.New("tenant id is required")

// Stats summarizes the registry.
type Stats struct {
	Total     int `json:"total"`
	Connected int `json:"connected"`
	Capacity  int `json:"capacity"`
}

type entry struct {
	tenantID string
	conn     *connector.Connector
}

// Registry maps tenant ids to connectors.
//
// When full, registering a new tenant evicts the tenant registered first.
// Eviction is FIFO by registration, not LRU: reads do not refresh a
// tenant's position. Tenants created on first read count toward capacity
// and can evict tenants registered explicitly.
type Registry struct {
	capacity int
	defaults schedule.BusinessHoursConfig
	opts     connector.Options
	logger   *slog.Logger
	metrics  *instrumentation.Metrics

	mu      sync.Mutex
	order   *list.List // of *entry, oldest first
	entries map[string]*list.Element
}

// Config configures a Registry.
type Config struct {
	// Capacity bounds the number of tenants (default 200).
	Capacity int
	// Defaults are the business hours used when a tenant registers
	// without its own.
	Defaults schedule.BusinessHoursConfig
	// Connector holds the collaborators passed to every connector.
	Connector connector.Options
}

// New creates an empty registry.
func New(cfg Config) *Registry {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	logger := cfg.Connector.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaults := cfg.Defaults
	if defaults.Start == "" && defaults.End == "" && defaults.SlotDurationMinutes == 0 {
		defaults = schedule.DefaultBusinessHours()
	}
	return &Registry{
		capacity: cfg.Capacity,
		defaults: defaults.WithDefaults(),
		opts:     cfg.Connector,
		logger:   logger,
		metrics:  cfg.Connector.Metrics,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// DefaultHours returns the business hours used for tenants registered
// without their own.
func (r *Registry) DefaultHours() schedule.BusinessHoursConfig {
	return r.defaults.WithDefaults()
}

// Register creates and connects a connector for tenantID, replacing any
// existing one. An error is returned only for an empty tenant id or an
// invalid configuration.
func (r *Registry) Register(ctx context.Context, tenantID string, cfg schedule.BusinessHoursConfig) (*connector.Connector, error) {
	conn, err := r.build(tenantID, cfg)
	if err != nil {
		return nil, err
	}
	r.connect(ctx, conn)
	r.insert(ctx, conn, true)
	return conn, nil
}

// GetOrCreate returns the tenant's connector, registering one when absent.
// A nil cfg uses the registry defaults.
func (r *Registry) GetOrCreate(ctx context.Context, tenantID string, cfg *schedule.BusinessHoursConfig) (*connector.Connector, error) {
	if conn, ok := r.Get(tenantID); ok {
		return conn, nil
	}

	hours := r.defaults
	if cfg != nil {
		hours = *cfg
	}
	conn, err := r.build(tenantID, hours)
	if err != nil {
		return nil, err
	}
	r.connect(ctx, conn)

	if winner := r.insert(ctx, conn, false); winner != conn {
		// Another caller registered the tenant while we were connecting.
		conn.Disconnect()
		return winner, nil
	}
	return conn, nil
}

func (r *Registry) build(tenantID string, cfg schedule.BusinessHoursConfig) (*connector.Connector, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenantID
	}
	conn, err := connector.New(tenantID, cfg, r.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to register tenant %s: %w", tenantID, err)
	}
	return conn, nil
}

// connect runs outside the registry lock since credential resolution may
// block.
func (r *Registry) connect(ctx context.Context, conn *connector.Connector) {
	start := time.Now()
	connected := conn.Connect(ctx)
	r.logger.Debug("tenant connector ready",
		logging.Tenant(conn.TenantID()),
		slog.Bool("connected", connected),
		slog.Duration(logging.KeyDuration, time.Since(start)))
}

// insert adds conn under the lock. With replace set, an existing entry is
// swapped in place and its old connector disconnected; otherwise the
// existing connector wins and is returned.
func (r *Registry) insert(ctx context.Context, conn *connector.Connector, replace bool) *connector.Connector {
	var (
		victims  []*connector.Connector
		evicted  string
		replaced bool
	)

	r.mu.Lock()
	tenantID := conn.TenantID()
	if el, ok := r.entries[tenantID]; ok {
		e := el.Value.(*entry)
		if !replace {
			existing := e.conn
			r.mu.Unlock()
			return existing
		}
		victims = append(victims, e.conn)
		e.conn = conn
		replaced = true
	} else {
		if r.order.Len() >= r.capacity {
			oldest := r.order.Front()
			victim := oldest.Value.(*entry)
			victim.conn.Disconnect()
			r.order.Remove(oldest)
			delete(r.entries, victim.tenantID)
			evicted = victim.tenantID
		}
		r.entries[tenantID] = r.order.PushBack(&entry{tenantID: tenantID, conn: conn})
	}
	r.mu.Unlock()

	for _, old := range victims {
		old.Disconnect()
	}

	switch {
	case replaced:
		r.logger.Info("tenant re-registered", logging.Tenant(tenantID))
	case evicted != "":
		r.metrics.RecordEviction(ctx)
		r.logger.Info("registry full, evicted oldest tenant",
			logging.Tenant(tenantID),
			slog.String("evicted", evicted),
			slog.Int("capacity", r.capacity))
	default:
		r.metrics.AddRegisteredTenants(ctx, 1)
		r.logger.Info("tenant registered", logging.Tenant(tenantID))
	}
	return conn
}

// Get returns the tenant's connector without creating one.
func (r *Registry) Get(tenantID string) (*connector.Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[tenantID]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).conn, true
}

// Unregister disconnects and removes a tenant. It reports whether the
// tenant was present.
func (r *Registry) Unregister(ctx context.Context, tenantID string) bool {
	r.mu.Lock()
	el, ok := r.entries[tenantID]
	if ok {
		r.order.Remove(el)
		delete(r.entries, tenantID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	el.Value.(*entry).conn.Disconnect()
	r.metrics.AddRegisteredTenants(ctx, -1)
	r.logger.Info("tenant unregistered", logging.Tenant(tenantID))
	return true
}

// Len returns the number of registered tenants.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// Capacity returns the maximum number of tenants.
func (r *Registry) Capacity() int {
	return r.capacity
}

// Tenants returns tenant ids in registration order, oldest first.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*entry).tenantID)
	}
	return ids
}

func (r *Registry) connectors() []*connector.Connector {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*connector.Connector, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		conns = append(conns, el.Value.(*entry).conn)
	}
	return conns
}

// Stats returns registry totals.
func (r *Registry) Stats() Stats {
	conns := r.connectors()
	st := Stats{Total: len(conns), Capacity: r.capacity}
	for _, c := range conns {
		if c.IsConnected() {
			st.Connected++
		}
	}
	return st
}

// Close disconnects and removes every tenant.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	conns := make([]*connector.Connector, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		conns = append(conns, el.Value.(*entry).conn)
	}
	r.order.Init()
	r.entries = make(map[string]*list.Element)
	r.mu.Unlock()

	for _, c := range conns {
		c.Disconnect()
	}
	r.metrics.AddRegisteredTenants(ctx, -int64(len(conns)))
}
