// Package cache provides the secondary connection store used when the
// primary store is unreachable. Implementations hold the same shape as
// the primary, serialized locally.
package cache

import (
	"context"

	"github.com/vaultlink/connector-core/internal/models"
)

// Cache mirrors active connections. Lookups of absent entries return
// models.ErrNotFound.
type Cache interface {
	Put(ctx context.Context, conn *models.Connection) error
	Remove(ctx context.Context, userID, platformID string) error
	GetActive(ctx context.Context, userID, platformID string) (*models.Connection, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Connection, error)
}
