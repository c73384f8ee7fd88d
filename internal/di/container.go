package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/config"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/observability"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/services"
)

// Services bundles the service-layer components that handlers and the process lifecycle rely upon.
type Services struct {
	Stock      *services.StockAdjuster
	Reconciler *services.InventoryReconciler
	Watcher    *services.InventoryWatcherManager
	System     services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	logger *zap.Logger
}

// Option customises NewContainer.
type Option func(*containerOptions)

type containerOptions struct {
	logger    *zap.Logger
	publisher services.InventoryEventPublisher
	build     services.BuildInfo
	clock     func() time.Time
}

// WithLogger sets the base logger; components derive named children from it.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithEventPublisher enables adjustment events. Leave unset to disable publishing.
func WithEventPublisher(publisher services.InventoryEventPublisher) Option {
	return func(o *containerOptions) {
		o.publisher = publisher
	}
}

// WithBuildInfo sets the metadata attached to health reports.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = info
	}
}

// WithClock overrides time.Now for every component.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// NewContainer constructs the runtime dependencies. Production wiring passes the Firestore registry,
// tests can supply the in-memory one.
func NewContainer(cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = time.Now
	}

	svc, err := buildServices(cfg, reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		logger:       options.logger,
	}, nil
}

// Start attaches the watcher for the configured seller, if any.
func (c *Container) Start(ctx context.Context) error {
	sellerID := c.Config.Watch.SellerID
	if sellerID == "" {
		c.logger.Info("no seller configured; waiting for an operator to attach the watcher")
		return nil
	}
	if _, err := c.Services.Watcher.Attach(ctx, services.AttachOptions{SellerID: sellerID}); err != nil {
		return fmt.Errorf("attach inventory watcher for %s: %w", sellerID, err)
	}
	return nil
}

// Close detaches the watcher and releases repository clients. Both steps run even if the first fails.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Services.Watcher != nil {
		if err := c.Services.Watcher.Detach(ctx); err != nil {
			errs = append(errs, fmt.Errorf("detach watcher: %w", err))
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close repositories: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildServices(cfg config.Config, reg repositories.Registry, opts containerOptions) (Services, error) {
	var svc Services

	stock, err := services.NewStockAdjuster(services.StockAdjusterDeps{
		Products: reg.Products(),
		Logger:   observability.Component(opts.logger, "stock"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stock adjuster: %w", err)
	}
	svc.Stock = stock

	reconciler, err := services.NewInventoryReconciler(services.InventoryReconcilerDeps{
		Orders:   reg.Orders(),
		Adjuster: stock,
		Events:   opts.publisher,
		Clock:    opts.clock,
		Logger:   observability.Component(opts.logger, "reconciler"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory reconciler: %w", err)
	}
	svc.Reconciler = reconciler

	watcher, err := services.NewInventoryWatcherManager(services.InventoryWatcherManagerDeps{
		Orders:           reg.Orders(),
		Businesses:       reg.Businesses(),
		Handler:          reconciler,
		Window:           cfg.Watch.Window,
		ActivationRetry:  cfg.Watch.ActivationRetry,
		ResubscribeDelay: cfg.Watch.ResubscribeDelay,
		Clock:            opts.clock,
		Logger:           observability.Component(opts.logger, "watcher"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory watcher manager: %w", err)
	}
	svc.Watcher = watcher

	if healthRepo := reg.Health(); healthRepo != nil {
		build := opts.build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		if build.StartedAt.IsZero() {
			build.StartedAt = opts.clock().UTC()
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Watcher:          watcher,
			Clock:            opts.clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
