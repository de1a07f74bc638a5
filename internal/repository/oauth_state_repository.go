package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vaultlink/connector-core/internal/models"
)

var ErrStateNotFound = errors.New("oauth state not found")

type OAuthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) *OAuthStateRepository {
	return &OAuthStateRepository{db: db}
}

// Create stores a new single-use state token.
func (r *OAuthStateRepository) Create(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (
			id, user_id, platform_id, state_token, redirect_uri, expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		state.ID,
		state.UserID,
		state.PlatformID,
		state.StateToken,
		state.RedirectURI,
		state.ExpiresAt,
		state.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}

	return nil
}

// Consume atomically removes the token and returns it, so the same token
// can never validate twice. Expiry is checked by the caller against the
// returned row.
func (r *OAuthStateRepository) Consume(ctx context.Context, stateToken string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state_token = $1
		RETURNING id, user_id, platform_id, state_token, redirect_uri, expires_at, created_at
	`

	var state models.OAuthState
	err := r.db.QueryRowContext(ctx, query, stateToken).Scan(
		&state.ID,
		&state.UserID,
		&state.PlatformID,
		&state.StateToken,
		&state.RedirectURI,
		&state.ExpiresAt,
		&state.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return &state, nil
}

// DeleteExpired removes tokens past their validity window.
func (r *OAuthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}

	return n, nil
}
