package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/registry"
)

// ErrShutdown is returned by operations on a server context that has been
// shut down.
var ErrShutdown = errors.New("server context is shut down")

// closablePublisher is a publisher that must be drained on shutdown.
type closablePublisher interface {
	events.Publisher
	Close(ctx context.Context) error
}

// ServerContext holds the shared state of a running MCP server: the tenant
// registry, the event publisher and the observability components.
type ServerContext struct {
	registry  *registry.Registry
	publisher events.Publisher
	logger    *slog.Logger
	readOnly  bool

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	shutdown    bool
}

// Options configures a ServerContext.
type Options struct {
	Registry  *registry.Registry
	Publisher events.Publisher
	Logger    *slog.Logger
	// ReadOnly hides booking and cancellation tools.
	ReadOnly bool
}

// NewServerContext creates a server context bound to ctx. Cancelling ctx
// marks the context as done but does not release the registry; call
// Shutdown for that.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		registry:  opts.Registry,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		readOnly:  opts.ReadOnly,
		ctx:       shutdownCtx,
		cancel:    cancel,
	}, nil
}

// Context returns the server's lifetime context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Registry returns the tenant registry.
func (sc *ServerContext) Registry() *registry.Registry {
	return sc.registry
}

// Publisher returns the event publisher.
func (sc *ServerContext) Publisher() events.Publisher {
	return sc.publisher
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether write tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// SetMetrics sets the metrics recorder used by tool handlers.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger used by tool handlers.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown disconnects every tenant and drains the event publisher. It is
// safe to call more than once; later calls return ErrShutdown.
func (sc *ServerContext) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return ErrShutdown
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.cancel()
	sc.registry.Close(ctx)

	if p, ok := sc.publisher.(closablePublisher); ok {
		if err := p.Close(ctx); err != nil {
			return fmt.Errorf("failed to drain event publisher: %w", err)
		}
	}
	sc.logger.Info("server context shut down")
	return nil
}
