// Package app initializes and holds long-lived application services,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	busmemory "github.com/mediarelay/mediarelay/internal/bus/memory"
	buspubsub "github.com/mediarelay/mediarelay/internal/bus/pubsub"
	busredis "github.com/mediarelay/mediarelay/internal/bus/redis"
	"github.com/mediarelay/mediarelay/internal/clock/system"
	"github.com/mediarelay/mediarelay/internal/config"
	"github.com/mediarelay/mediarelay/internal/id/uuid"
	"github.com/mediarelay/mediarelay/internal/logging"
	"github.com/mediarelay/mediarelay/internal/relay"
	"github.com/mediarelay/mediarelay/internal/reply"
	replyredis "github.com/mediarelay/mediarelay/internal/reply/redis"
	storememory "github.com/mediarelay/mediarelay/internal/store/memory"
	storeredis "github.com/mediarelay/mediarelay/internal/store/redis"
)

// App holds the shared, long-lived services for the relay: logger,
// metadata store, request bus and reply channel. It is initialized once
// at startup and passed to the components that need it.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   relay.MetadataStore
	bus     relay.Bus
	replier relay.Replier
	clock   relay.Clock
	ids     relay.IDGenerator

	closers []func() error
}

// Config returns the loaded service configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the configured metadata store.
func (a *App) Store() relay.MetadataStore { return a.store }

// Bus returns the request bus connecting the front end to the dispatcher.
func (a *App) Bus() relay.Bus { return a.bus }

// Replier returns the reply channel back to the front end.
func (a *App) Replier() relay.Replier { return a.replier }

// Clock returns the shared clock.
func (a *App) Clock() relay.Clock { return a.clock }

// IDs returns the correlation ID generator.
func (a *App) IDs() relay.IDGenerator { return a.ids }

// New creates and initializes an App from the given configuration.
// It is the central point for service initialization and fails fast if
// any critical service cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Info("initializing application services")

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.NewUUIDGenerator(),
	}

	if err := a.initStore(); err != nil {
		return nil, err
	}
	if err := a.initBus(ctx); err != nil {
		return nil, err
	}
	if err := a.initReplier(); err != nil {
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.String("bus", cfg.Bus.Provider))
	return a, nil
}

func (a *App) initStore() error {
	switch a.cfg.Store.Provider {
	case "redis":
		a.logger.Info("using redis metadata store",
			zap.String("address", a.cfg.Store.Redis.Address))
		store, err := storeredis.New(a.cfg.Store.Redis, a.cfg.Store.TTL, a.logger)
		if err != nil {
			return fmt.Errorf("init metadata store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case "memory":
		a.logger.Info("using in-memory metadata store, entries do not survive restarts")
		a.store = storememory.New(a.cfg.Store.TTL, a.clock)
	default:
		return fmt.Errorf("unknown store provider: %s", a.cfg.Store.Provider)
	}
	return nil
}

func (a *App) initBus(ctx context.Context) error {
	switch a.cfg.Bus.Provider {
	case "redis":
		a.logger.Info("using redis request bus",
			zap.String("address", a.cfg.Bus.Redis.Address),
			zap.String("channel", a.cfg.Bus.Channel))
		bus, err := busredis.New(a.cfg.Bus.Redis, a.logger)
		if err != nil {
			return fmt.Errorf("init request bus: %w", err)
		}
		a.bus = bus
		a.closers = append(a.closers, bus.Close)
	case "pubsub":
		a.logger.Info("using cloud pub/sub request bus",
			zap.String("topic", a.cfg.Bus.PubSub.TopicID))
		bus, err := buspubsub.New(ctx, buspubsub.Config{
			ProjectID:    a.cfg.Bus.PubSub.ProjectID,
			TopicID:      a.cfg.Bus.PubSub.TopicID,
			Subscription: a.cfg.Bus.PubSub.Subscription,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("init request bus: %w", err)
		}
		a.bus = bus
		a.closers = append(a.closers, bus.Close)
	case "memory":
		a.logger.Info("using in-process request bus")
		bus := busmemory.New(64)
		a.bus = bus
		a.closers = append(a.closers, bus.Close)
	default:
		return fmt.Errorf("unknown bus provider: %s", a.cfg.Bus.Provider)
	}
	return nil
}

func (a *App) initReplier() error {
	if a.cfg.Reply.Redis.Address == "" {
		a.logger.Info("no reply channel configured, logging outcomes only")
		a.replier = reply.NewLogReplier(a.logger)
		return nil
	}
	replier, err := replyredis.New(a.cfg.Reply.Redis, a.logger)
	if err != nil {
		return fmt.Errorf("init reply channel: %w", err)
	}
	a.replier = replier
	a.closers = append(a.closers, replier.Close)
	return nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	// Best effort, stderr sync fails on some platforms.
	_ = a.logger.Sync()
}
