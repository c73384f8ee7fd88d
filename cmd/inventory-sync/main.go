package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/di"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/handlers"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/config"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/events"
	pfirestore "github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/platform/observability"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories"
	firestoreRepo "github.com/jeniffer-joyce/HousebibiGoWhere/internal/repositories/firestore"
	"github.com/jeniffer-joyce/HousebibiGoWhere/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["INVENTORY_SERVICE_NAME"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("inventory-sync")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	publisher, closePublisher, err := newEventPublisher(ctx, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise inventory event publisher", zap.Error(err))
	}
	defer closePublisher()

	registryOpts := []firestoreRepo.RegistryOption{}
	containerOpts := []di.Option{
		di.WithLogger(logger),
		di.WithBuildInfo(buildInfo),
	}
	if publisher != nil {
		registryOpts = append(registryOpts, firestoreRepo.WithHealthChecks(repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check:   publisher.Check,
		}))
		containerOpts = append(containerOpts, di.WithEventPublisher(publisher))
	} else {
		logger.Info("inventory events disabled; no topic configured")
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, cfg.Watch, registryOpts...)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	container, err := di.NewContainer(cfg, registry, containerOpts...)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(container.Services.System),
	)
	inventoryHandlers := handlers.NewInventoryHandlers(container.Services.Watcher, container.Services.Reconciler)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RecoveryMiddleware(logger),
			observability.RequestLoggerMiddleware("/healthz", "/readyz"),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithInternalRoutes(inventoryHandlers.Routes),
	)

	if err := container.Start(ctx); err != nil {
		logger.Fatal("failed to start inventory watcher", zap.Error(err))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("inventory-sync listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; detaching watcher and draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := container.Services.Watcher.Detach(shutdownCtx); err != nil {
		logger.Warn("inventory watcher detach failed", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["INVENTORY_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["INVENTORY_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

// newEventPublisher returns a nil publisher when no topic is configured. The returned close func
// is always safe to call.
func newEventPublisher(ctx context.Context, cfg config.EventsConfig) (*events.PubSubInventoryPublisher, func(), error) {
	noop := func() {}
	topicID := strings.TrimSpace(cfg.Topic)
	if topicID == "" {
		return nil, noop, nil
	}

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts,
			option.WithEndpoint(host),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, noop, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	publisher, err := events.NewPubSubInventoryPublisher(topic)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return publisher, func() {
		topic.Stop()
		_ = client.Close()
	}, nil
}
