package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vaultlink/connector-core/internal/models"
)

// SQLite is a file-backed Cache. It survives process restarts, so
// reads keep working across a restart that happens during a primary
// outage.
type SQLite struct {
	db *gorm.DB
}

type cachedConnection struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"uniqueIndex:idx_cached_user_platform"`
	PlatformID  string `gorm:"uniqueIndex:idx_cached_user_platform"`
	Credentials string
	Settings    string
	IsActive    bool
	ConnectedAt *time.Time
	UpdatedAt   time.Time
}

func (cachedConnection) TableName() string {
	return "cached_connections"
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	if err := db.AutoMigrate(&cachedConnection{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache db: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Put(ctx context.Context, conn *models.Connection) error {
	dbo, err := toCached(conn)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"id", "credentials", "settings", "is_active", "connected_at", "updated_at",
		}),
	}).Create(dbo).Error
	if err != nil {
		return fmt.Errorf("failed to cache connection: %w", err)
	}

	return nil
}

func (s *SQLite) Remove(ctx context.Context, userID, platformID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND platform_id = ?", userID, strings.ToLower(platformID)).
		Delete(&cachedConnection{}).Error
	if err != nil {
		return fmt.Errorf("failed to evict cached connection: %w", err)
	}

	return nil
}

func (s *SQLite) GetActive(ctx context.Context, userID, platformID string) (*models.Connection, error) {
	var dbo cachedConnection

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND platform_id = ? AND is_active = ?", userID, strings.ToLower(platformID), true).
		First(&dbo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cached connection: %w", err)
	}

	return fromCached(&dbo)
}

func (s *SQLite) ListActiveByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	var dbos []cachedConnection

	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("platform_id ASC").
		Find(&dbos).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cached connections: %w", err)
	}

	conns := make([]models.Connection, 0, len(dbos))
	for i := range dbos {
		conn, err := fromCached(&dbos[i])
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}

	return conns, nil
}

func toCached(conn *models.Connection) (*cachedConnection, error) {
	credentials, err := json.Marshal(conn.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached credentials: %w", err)
	}

	settings, err := json.Marshal(conn.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached settings: %w", err)
	}

	return &cachedConnection{
		ID:          conn.ID,
		UserID:      conn.UserID,
		PlatformID:  strings.ToLower(conn.PlatformID),
		Credentials: string(credentials),
		Settings:    string(settings),
		IsActive:    conn.IsActive,
		ConnectedAt: conn.LastConnectedAt,
		UpdatedAt:   conn.UpdatedAt,
	}, nil
}

func fromCached(dbo *cachedConnection) (*models.Connection, error) {
	var credentials models.JSONB
	if err := json.Unmarshal([]byte(dbo.Credentials), &credentials); err != nil {
		return nil, fmt.Errorf("failed to decode cached credentials: %w", err)
	}

	var settings models.JSONB
	if err := json.Unmarshal([]byte(dbo.Settings), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode cached settings: %w", err)
	}

	return &models.Connection{
		ID:              dbo.ID,
		UserID:          dbo.UserID,
		PlatformID:      dbo.PlatformID,
		Credentials:     credentials,
		Settings:        settings,
		IsActive:        dbo.IsActive,
		LastConnectedAt: dbo.ConnectedAt,
		UpdatedAt:       dbo.UpdatedAt,
	}, nil
}
