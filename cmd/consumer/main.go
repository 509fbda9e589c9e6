// Command consumer reads raw punches from Kafka and feeds them to the
// attendance service, sharing the store the HTTP server uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/attendance-engine/app"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/ingest/kafka"
	"github.com/warp/attendance-engine/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger.Named("app.consumer")); err != nil {
		logger.Fatal("run consumer failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := app.NewService(cfg.Engine, store, logger)
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer reader.Close()

	logger.Info("consuming punches",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Kafka.GroupID),
	)
	return kafka.NewConsumer(reader, svc, logger).Run(ctx)
}
