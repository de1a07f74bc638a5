package models

import "time"

// OAuthState is a single-use correlation token guarding one OAuth
// redirect round-trip. A token past ExpiresAt never matches, consumed
// or not.
type OAuthState struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	PlatformID  string    `gorm:"column:platform_id"`
	StateToken  string    `gorm:"column:state_token;uniqueIndex"`
	RedirectURI string    `gorm:"column:redirect_uri"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (OAuthState) TableName() string {
	return "oauth_states"
}

// Expired reports whether the token is past its validity window.
func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
