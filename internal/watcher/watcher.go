// Package watcher runs the periodic connection health sweep: every
// active connection is probed, failing credentials are refreshed where
// the platform supports it, and expired OAuth states are pruned.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/config"
	"github.com/vaultlink/connector-core/internal/connector"
	"github.com/vaultlink/connector-core/internal/models"
)

// ConnectionLister provides the sweep set. The sweep reads the primary
// directly; during a primary outage it simply skips a cycle.
type ConnectionLister interface {
	ListAllActive(ctx context.Context) ([]models.Connection, error)
}

// HealthChecker probes and renews stored credentials.
type HealthChecker interface {
	TestConnection(ctx context.Context, userID, platformID string) (bool, error)
	RefreshCredentials(ctx context.Context, userID, platformID string) error
}

// StatePruner removes expired OAuth state tokens.
type StatePruner interface {
	PruneExpired(ctx context.Context)
}

type Watcher struct {
	cfg         *config.Config
	connections ConnectionLister
	health      HealthChecker
	pruner      StatePruner
	logger      *zap.Logger

	mu         sync.Mutex
	lastHealth map[string]bool
}

func New(cfg *config.Config, connections ConnectionLister, health HealthChecker, pruner StatePruner, logger *zap.Logger) *Watcher {
	return &Watcher{
		cfg:         cfg,
		connections: connections,
		health:      health,
		pruner:      pruner,
		logger:      logger,
		lastHealth:  make(map[string]bool),
	}
}

// Start begins the sweep loop and blocks until the context is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("starting connection health watcher",
		zap.Int("poll_interval_seconds", w.cfg.PollInterval),
	)

	w.sweep(ctx)
	w.pruner.PruneExpired(ctx)

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("connection health watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
			w.pruner.PruneExpired(ctx)
		}
	}
}

// sweep probes every active connection once and logs health
// transitions. A failing probe triggers one refresh attempt for
// platforms that support renewal.
func (w *Watcher) sweep(ctx context.Context) {
	conns, err := w.connections.ListAllActive(ctx)
	if err != nil {
		w.logger.Warn("skipping health sweep, connections unavailable", zap.Error(err))
		return
	}

	for _, conn := range conns {
		if ctx.Err() != nil {
			return
		}

		healthy := w.check(ctx, conn.UserID, conn.PlatformID)
		w.recordTransition(conn.UserID, conn.PlatformID, healthy)
	}
}

func (w *Watcher) check(ctx context.Context, userID, platformID string) bool {
	healthy, err := w.health.TestConnection(ctx, userID, platformID)
	if err != nil {
		w.logger.Debug("health probe not applicable",
			zap.String("platform_id", platformID),
			zap.Error(err),
		)
		return false
	}

	if healthy {
		return true
	}

	if err := w.health.RefreshCredentials(ctx, userID, platformID); err != nil {
		var configErr *connector.ConfigError
		if !errors.As(err, &configErr) {
			w.logger.Warn("credential refresh failed",
				zap.String("user_id", userID),
				zap.String("platform_id", platformID),
				zap.Error(err),
			)
		}
		return false
	}

	healthy, err = w.health.TestConnection(ctx, userID, platformID)
	if err != nil {
		return false
	}

	return healthy
}

func (w *Watcher) recordTransition(userID, platformID string, healthy bool) {
	key := userID + "|" + platformID

	w.mu.Lock()
	previous, seen := w.lastHealth[key]
	w.lastHealth[key] = healthy
	w.mu.Unlock()

	if seen && previous == healthy {
		return
	}

	if healthy {
		w.logger.Info("connection healthy",
			zap.String("user_id", userID),
			zap.String("platform_id", platformID),
		)
	} else {
		w.logger.Warn("connection unhealthy",
			zap.String("user_id", userID),
			zap.String("platform_id", platformID),
		)
	}
}
