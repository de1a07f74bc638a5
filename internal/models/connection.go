package models

import (
	"errors"
	"time"
)

// ErrNotFound is the shared not-found sentinel for connection lookups
// across the primary store and the cache.
var ErrNotFound = errors.New("not found")

// Connection is the durable record that a user has linked a platform.
// Disconnect flips IsActive instead of deleting the row so execution
// history referencing the platform stays interpretable.
type Connection struct {
	ID              string     `gorm:"column:id;primaryKey"`
	UserID          string     `gorm:"column:user_id;index:idx_connection_user_platform"`
	PlatformID      string     `gorm:"column:platform_id;index:idx_connection_user_platform"`
	Credentials     JSONB      `gorm:"column:credentials;type:jsonb"`
	Settings        JSONB      `gorm:"column:settings;type:jsonb"`
	IsActive        bool       `gorm:"column:is_active;index"`
	LastConnectedAt *time.Time `gorm:"column:last_connected"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// Credential returns the named credential value as a string, with a
// boolean reporting presence. Each connector owns its exact key set.
func (c *Connection) Credential(key string) (string, bool) {
	if c == nil || c.Credentials == nil {
		return "", false
	}

	raw, ok := c.Credentials[key]
	if !ok {
		return "", false
	}

	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}

	return s, true
}
