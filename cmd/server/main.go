/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine HTTP server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the zap logger
  3. Open the store (memory, sqlite or postgres)
  4. Load policies and build the attendance service
  5. Start the daily close scheduler
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides SQLITE_PATH, selects sqlite)
           Use ":memory:" for an in-memory database
  -no-scheduler  Do not run the daily close

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store
  5. Exit

EXAMPLES:
  ./server -db="./data/attendance.db"
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server
  ./server -port=3000 -db=":memory:"

SEE ALSO:
  - config/config.go: Environment variables
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

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/app"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/logging"
	"go.uber.org/zap"
)

func main() {
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	noScheduler := flag.Bool("no-scheduler", false, "disable the daily close scheduler")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.SQLitePath = *dbPath
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, !*noScheduler, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, withScheduler bool, logger *zap.Logger) error {
	ctx := context.Background()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("close store", zap.Error(err))
		}
	}()

	svc, err := app.NewService(cfg.Engine, store, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(store, svc, logger)
	router := api.NewRouter(handler, logger)

	scheduler := api.NewCloseScheduler(svc, logger)
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Enabled = withScheduler
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.App.Port),
			zap.String("env", cfg.App.Env),
			zap.String("db_driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
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
