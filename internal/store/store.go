// Package store layers the durable connection repository over a local
// cache. Reads fall back to the cache when the primary is unreachable,
// writes land in whichever layer accepts them, and callers learn which
// layer served them so degraded operation is visible instead of silent.
package store

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/cache"
	"github.com/vaultlink/connector-core/internal/models"
)

// Primary is the durable side of the store, backed by Postgres.
type Primary interface {
	UpsertActive(ctx context.Context, conn *models.Connection) error
	GetActive(ctx context.Context, userID, platformID string) (*models.Connection, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Connection, error)
	Deactivate(ctx context.Context, userID, platformID string) error
	UpdateCredentials(ctx context.Context, userID, platformID string, credentials models.JSONB) error
}

type Store struct {
	primary  Primary
	cache    cache.Cache
	logger   *zap.Logger
	degraded atomic.Bool
}

func New(primary Primary, c cache.Cache, logger *zap.Logger) *Store {
	return &Store{
		primary: primary,
		cache:   c,
		logger:  logger,
	}
}

// Degraded reports whether the last primary operation failed and the
// store is serving from cache.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

func (s *Store) markDegraded(op string, err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn("primary store unreachable, falling back to cache",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
}

func (s *Store) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info("primary store reachable again")
	}
}

// Upsert writes the connection to the primary and mirrors it into the
// cache. When the primary is down the write lands in the cache alone,
// reported through durable=false so the caller can tell the user the
// connection may not survive beyond this instance.
func (s *Store) Upsert(ctx context.Context, conn *models.Connection) (durable bool, err error) {
	if err := s.primary.UpsertActive(ctx, conn); err != nil {
		s.markDegraded("upsert", err)

		if cacheErr := s.cache.Put(ctx, conn); cacheErr != nil {
			return false, errors.Join(err, cacheErr)
		}

		return false, nil
	}

	s.markHealthy()

	if err := s.cache.Put(ctx, conn); err != nil {
		s.logger.Warn("failed to mirror connection into cache",
			zap.String("user_id", conn.UserID),
			zap.String("platform_id", conn.PlatformID),
			zap.Error(err),
		)
	}

	return true, nil
}

// GetActive reads from the primary, refreshing the cache on the way
// out. A definitive not-found from the primary passes through without
// consulting the cache, so a disconnect is never undone by a stale
// cached row.
func (s *Store) GetActive(ctx context.Context, userID, platformID string) (conn *models.Connection, fromCache bool, err error) {
	conn, err = s.primary.GetActive(ctx, userID, platformID)
	if err == nil {
		s.markHealthy()

		if cacheErr := s.cache.Put(ctx, conn); cacheErr != nil {
			s.logger.Warn("failed to refresh cached connection", zap.Error(cacheErr))
		}

		return conn, false, nil
	}

	if errors.Is(err, models.ErrNotFound) {
		s.markHealthy()

		if cacheErr := s.cache.Remove(ctx, userID, platformID); cacheErr != nil {
			s.logger.Warn("failed to evict cached connection", zap.Error(cacheErr))
		}

		return nil, false, models.ErrNotFound
	}

	s.markDegraded("get", err)

	conn, cacheErr := s.cache.GetActive(ctx, userID, platformID)
	if cacheErr != nil {
		if errors.Is(cacheErr, models.ErrNotFound) {
			return nil, true, models.ErrNotFound
		}
		return nil, true, errors.Join(err, cacheErr)
	}

	return conn, true, nil
}

// ListActiveByUser lists active connections, from cache when the
// primary is unreachable.
func (s *Store) ListActiveByUser(ctx context.Context, userID string) (conns []models.Connection, fromCache bool, err error) {
	conns, err = s.primary.ListActiveByUser(ctx, userID)
	if err == nil {
		s.markHealthy()
		return conns, false, nil
	}

	s.markDegraded("list", err)

	conns, cacheErr := s.cache.ListActiveByUser(ctx, userID)
	if cacheErr != nil {
		return nil, true, errors.Join(err, cacheErr)
	}

	return conns, true, nil
}

// Deactivate flips the connection inactive in the primary and evicts
// the cached copy. Eviction happens even when the primary write fails,
// so a disconnect the user asked for is honored at least locally.
func (s *Store) Deactivate(ctx context.Context, userID, platformID string) error {
	primaryErr := s.primary.Deactivate(ctx, userID, platformID)
	if primaryErr != nil {
		s.markDegraded("deactivate", primaryErr)
	} else {
		s.markHealthy()
	}

	if err := s.cache.Remove(ctx, userID, platformID); err != nil {
		s.logger.Warn("failed to evict cached connection",
			zap.String("user_id", userID),
			zap.String("platform_id", platformID),
			zap.Error(err),
		)
	}

	return primaryErr
}

// UpdateCredentials replaces the credential bag after a token refresh
// and keeps the cached copy in step.
func (s *Store) UpdateCredentials(ctx context.Context, userID, platformID string, credentials models.JSONB) error {
	if err := s.primary.UpdateCredentials(ctx, userID, platformID, credentials); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}

		s.markDegraded("update-credentials", err)

		return err
	}

	s.markHealthy()

	conn, err := s.cache.GetActive(ctx, userID, platformID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("failed to read cached connection for refresh", zap.Error(err))
		}
		return nil
	}

	conn.Credentials = credentials
	if err := s.cache.Put(ctx, conn); err != nil {
		s.logger.Warn("failed to refresh cached credentials", zap.Error(err))
	}

	return nil
}
