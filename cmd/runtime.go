package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/teemow/slotkeeper/internal/calendar"
	"github.com/teemow/slotkeeper/internal/config"
	"github.com/teemow/slotkeeper/internal/connector"
	"github.com/teemow/slotkeeper/internal/events"
	"github.com/teemow/slotkeeper/internal/google"
	"github.com/teemow/slotkeeper/internal/instrumentation"
	"github.com/teemow/slotkeeper/internal/logging"
	"github.com/teemow/slotkeeper/internal/registry"
)

// runtime is the set of components built from a loaded configuration.
type runtime struct {
	cfg       *config.Config
	registry  *registry.Registry
	publisher *events.AsyncPublisher
	closers   []io.Closer
}

// newRuntime wires the credential chain, the calendar provider factory,
// the event publisher and the tenant registry, then registers the
// configured tenants.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	var next events.Publisher = events.NopPublisher{}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to event broker: %w", err)
		}
		rt.closers = append(rt.closers, amqpPub)
		next = amqpPub
		logger.Info("publishing events to AMQP exchange", slog.String("exchange", cfg.Events.Exchange))
	}
	rt.publisher = events.NewAsyncPublisher(next, cfg.Events.Buffer, logger, metrics)

	creds := google.NewChainCredentialProvider(logger,
		google.NewFileCredentialProvider(cfg.Credentials.Dir),
		google.NewEnvCredentialProvider(),
	)
	factory := calendar.ProviderFactory(calendar.Options{
		RequestsPerMinute: cfg.Calendar.RequestsPerMinute,
		Metrics:           metrics,
	})

	rt.registry = registry.New(registry.Config{
		Capacity: cfg.Registry.Capacity,
		Defaults: cfg.Defaults,
		Connector: connector.Options{
			Credentials: creds,
			Factory:     connector.ProviderFactory(factory),
			Publisher:   rt.publisher,
			Retry:       cfg.RetryPolicy(),
			StaleAfter:  cfg.Cache.StaleAfter,
			CallTimeout: cfg.Connector.CallTimeout,
			Logger:      logger,
			Metrics:     metrics,
		},
	})

	for _, t := range cfg.Tenants {
		if _, err := rt.registry.Register(ctx, t.ID, t.Hours); err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
	}
	if n := len(cfg.Tenants); n > 0 {
		logger.Info("registered configured tenants", slog.Int("count", n))
	}
	return rt, nil
}

// Close disconnects every tenant, drains queued events and closes the
// broker connection.
func (rt *runtime) Close(ctx context.Context) error {
	rt.registry.Close(ctx)

	var errs []error
	if err := rt.publisher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain events: %w", err))
	}
	for _, c := range rt.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newLogger returns the text logger on w used by every command.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// logStartup records the effective configuration without secrets.
func logStartup(logger *slog.Logger, cfg *config.Config, transport string, readOnly bool) {
	logger.Info("starting slotkeeper",
		logging.Operation("serve"),
		slog.String("version", version),
		slog.String("transport", transport),
		slog.Bool("read_only", readOnly),
		slog.Int("capacity", cfg.Registry.Capacity),
		slog.Duration("stale_after", cfg.Cache.StaleAfter),
		slog.Bool("amqp", cfg.Events.AMQPURL != ""),
		slog.String("credentials_dir", cfg.Credentials.Dir))
}
