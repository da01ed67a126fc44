package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
)

// DefaultBuffer is the queue size used when none is configured.
const DefaultBuffer = 256

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// publishTimeout bounds each delivery to the underlying publisher.
const publishTimeout = 5 * time.Second

// AsyncPublisher queues events on a buffered channel drained by one worker.
// Publish never blocks; when the queue is full the event is dropped.
type AsyncPublisher struct {
	next    Publisher
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	queue chan Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// NewAsyncPublisher starts the worker. buffer <= 0 uses DefaultBuffer.
func NewAsyncPublisher(next Publisher, buffer int, logger *slog.Logger, metrics *instrumentation.Metrics) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	if next == nil {
		next = NopPublisher{}
	}

	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues event.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.queue <- event:
		return nil
	default:
		p.dropped.Add(1)
		p.metrics.RecordEventPublished(ctx, event.Type, instrumentation.PublishDropped)
		p.logger.Warn("event queue full, dropping event",
			logging.Event(event.Type),
			logging.Tenant(event.TenantID))
		return nil
	}
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.next.Publish(ctx, event)
		cancel()

		if err != nil {
			p.failed.Add(1)
			p.metrics.RecordEventPublished(context.Background(), event.Type, instrumentation.PublishFailed)
			p.logger.Warn("failed to publish event",
				logging.Event(event.Type),
				logging.Tenant(event.TenantID),
				logging.Err(err))
			continue
		}
		p.delivered.Add(1)
		p.metrics.RecordEventPublished(context.Background(), event.Type, instrumentation.PublishSent)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// expires.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (p *AsyncPublisher) Dropped() int64 { return p.dropped.Load() }

// Delivered returns the number of events handed to the underlying publisher.
func (p *AsyncPublisher) Delivered() int64 { return p.delivered.Load() }

// Failed returns the number of deliveries the underlying publisher rejected.
func (p *AsyncPublisher) Failed() int64 { return p.failed.Load() }
