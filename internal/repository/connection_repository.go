package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultlink/connector-core/internal/models"
)

type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(db *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// UpsertActive supersedes any prior connection for the (user, platform)
// pair and inserts a fresh active row inside one transaction, so at most
// one active connection exists per pair. Old rows stay behind inactive
// for audit interpretability.
func (r *ConnectionRepository) UpsertActive(ctx context.Context, conn *models.Connection) error {
	now := time.Now().UTC()

	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}

	conn.IsActive = true
	conn.LastConnectedAt = &now
	conn.CreatedAt = now
	conn.UpdatedAt = now

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Connection{}).
			Where("user_id = ? AND platform_id = ? AND is_active = ?", conn.UserID, conn.PlatformID, true).
			Updates(map[string]interface{}{
				"is_active":  false,
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}

		return tx.Create(conn).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert connection: %w", err)
	}

	return nil
}

// GetActive retrieves the active connection for a (user, platform) pair.
func (r *ConnectionRepository) GetActive(ctx context.Context, userID, platformID string) (*models.Connection, error) {
	var conn models.Connection

	result := r.db.WithContext(ctx).
		Where("user_id = ? AND platform_id = ? AND is_active = ?", userID, platformID, true).
		First(&conn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", result.Error)
	}

	return &conn, nil
}

// ListActiveByUser returns all active connections for a user.
func (r *ConnectionRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection

	result := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("platform_id ASC").
		Find(&conns)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list connections: %w", result.Error)
	}

	return conns, nil
}

// ListAllActive returns every active connection across users, used by
// the health sweeper.
func (r *ConnectionRepository) ListAllActive(ctx context.Context) ([]models.Connection, error) {
	var conns []models.Connection

	result := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("user_id ASC, platform_id ASC").
		Find(&conns)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active connections: %w", result.Error)
	}

	return conns, nil
}

// Deactivate marks the active connection inactive without deleting it.
func (r *ConnectionRepository) Deactivate(ctx context.Context, userID, platformID string) error {
	result := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("user_id = ? AND platform_id = ? AND is_active = ?", userID, platformID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate connection: %w", result.Error)
	}

	return nil
}

// UpdateCredentials replaces the credential bag on the active
// connection, used after a token refresh.
func (r *ConnectionRepository) UpdateCredentials(ctx context.Context, userID, platformID string, credentials models.JSONB) error {
	result := r.db.WithContext(ctx).Model(&models.Connection{}).
		Where("user_id = ? AND platform_id = ? AND is_active = ?", userID, platformID, true).
		Updates(map[string]interface{}{
			"credentials": credentials,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update credentials: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}
