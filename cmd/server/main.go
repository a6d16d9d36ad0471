/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and the config
  2. Build the zap logger
  3. Open the configured store (sqlite or postgres, migrations included)
  4. Seed leave categories (categories file or built-in defaults)
  5. Wire notification sinks: inbox, log, and Redis when enabled
  6. Configure HTTP router and start the server

COMMAND-LINE FLAGS:
  -config  Path to a YAML config file (default: ./config/config.yaml or
           ./config.yaml when present)

ENVIRONMENT:
  Every key can be overridden with LEAVE_<SECTION>_<KEY>, e.g.
  LEAVE_STORE_DRIVER=postgres, LEAVE_SERVER_PORT=3000, LEAVE_LOG_LEVEL=debug.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Redis and database connections
  4. Exit

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "leave-engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize store
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Seed categories
	categories, err := loadCategories(cfg.Leave)
	if err != nil {
		return err
	}
	if err := factory.SeedCategories(ctx, store, categories); err != nil {
		return err
	}
	logger.Info("leave categories seeded", zap.Int("count", len(categories)))

	// Notification sinks
	inbox := notify.NewStoreSink(store)
	sinks := notify.Multi{inbox, notify.NewLogSink(logger)}
	if cfg.Redis.Enabled {
		rdb, err := notify.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sinks = append(sinks, notify.NewRedisSink(rdb, cfg.Redis.KeyPrefix))
	}

	service := leave.NewRequestService(store, sinks, logger, leave.Options{
		MeetingCancellationReason:          cfg.Leave.MeetingCancellationReason,
		AllowReliefRevisionAfterResolution: cfg.Leave.AllowReliefRevisionAfterResolution,
	})

	handler := api.NewHandler(store, service, inbox, logger)
	handler.BaseCategories = categories
	router := api.NewRouter(handler, cfg.Server.CORS.AllowOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
			zap.Bool("redis", cfg.Redis.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// closableStore is what main needs from either backend.
type closableStore interface {
	api.Store
	Close() error
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (closableStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Postgres.DSN(), postgres.Options{
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", zap.String("path", cfg.SQLite.Path))
		return store, nil
	}
}

func loadCategories(cfg config.LeaveConfig) ([]leave.Category, error) {
	if cfg.CategoriesFile == "" {
		return factory.DefaultCategories(), nil
	}
	return factory.NewCategoryFactory().LoadFile(cfg.CategoriesFile)
}
