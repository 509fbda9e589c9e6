// Package app wires configuration, persistence and the attendance service
// for the binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/config"
	"github.com/warp/attendance-engine/factory"
	"github.com/warp/attendance-engine/store/memory"
	"github.com/warp/attendance-engine/store/postgres"
	"github.com/warp/attendance-engine/store/sqlite"
	"go.uber.org/zap"
)

// OpenStore opens the store selected by cfg.Driver. The returned function
// releases it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (api.Store, func() error, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), func() error { return nil }, nil
	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("sqlite store opened", zap.String("path", cfg.SQLitePath))
		return s, s.Close, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("postgres store opened")
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// NewService builds the reconciler from the engine settings and the policy
// file, and the service over repo.
func NewService(cfg config.EngineConfig, repo attendance.Repository, logger *zap.Logger) (*attendance.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	reg, err := factory.LoadRegistry(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}

	rc := attendance.NewReconciler(reg, nil, loc, logger)
	rc.Processor.DuplicateWindow = cfg.DuplicateWindow
	rc.Processor.MinConfidence = cfg.MinConfidence
	rc.ReviewThreshold = cfg.ReviewThreshold

	logger.Info("engine configured",
		zap.String("timezone", loc.String()),
		zap.Duration("duplicate_window", cfg.DuplicateWindow),
		zap.Int("min_confidence", cfg.MinConfidence),
		zap.Int("review_threshold", cfg.ReviewThreshold),
		zap.Int("policies", len(reg.List())),
	)
	return attendance.NewService(repo, rc, logger), nil
}
