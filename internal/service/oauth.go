package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vaultlink/connector-core/internal/models"
)

// ErrStateExpired is returned when a state token validates but is past
// its window. The token is consumed regardless.
var ErrStateExpired = errors.New("oauth state expired")

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

var gmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
}

// OAuthStateStore persists single-use state tokens.
type OAuthStateStore interface {
	Create(ctx context.Context, state *models.OAuthState) error
	Consume(ctx context.Context, stateToken string) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OAuthManager issues and validates the state tokens correlating OAuth
// redirect round-trips. Each token validates at most once.
type OAuthManager struct {
	states       OAuthStateStore
	ttl          time.Duration
	clientID     string
	clientSecret string
	logger       *zap.Logger
}

func NewOAuthManager(states OAuthStateStore, ttl time.Duration, clientID, clientSecret string, logger *zap.Logger) *OAuthManager {
	return &OAuthManager{
		states:       states,
		ttl:          ttl,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

// BeginAuthorization mints a state token for one redirect round-trip.
// For platforms with a configured provider it also returns the
// authorization URL to send the user to; otherwise the caller supplies
// its own.
func (m *OAuthManager) BeginAuthorization(ctx context.Context, userID, platformID, redirectURI string) (*models.OAuthState, string, error) {
	now := time.Now().UTC()

	state := &models.OAuthState{
		ID:          uuid.NewString(),
		UserID:      userID,
		PlatformID:  strings.ToLower(platformID),
		StateToken:  uuid.NewString(),
		RedirectURI: redirectURI,
		ExpiresAt:   now.Add(m.ttl),
		CreatedAt:   now,
	}

	if err := m.states.Create(ctx, state); err != nil {
		return nil, "", fmt.Errorf("failed to create oauth state: %w", err)
	}

	var authURL string
	if state.PlatformID == "gmail" && m.clientID != "" {
		authURL = m.googleConfig(redirectURI).AuthCodeURL(state.StateToken, oauth2.AccessTypeOffline)
	}

	return state, authURL, nil
}

// CompleteAuthorization consumes the state token and checks its window.
// A second call with the same token fails with ErrStateNotFound from the
// store layer.
func (m *OAuthManager) CompleteAuthorization(ctx context.Context, stateToken string) (*models.OAuthState, error) {
	state, err := m.states.Consume(ctx, stateToken)
	if err != nil {
		return nil, err
	}

	if state.Expired(time.Now().UTC()) {
		m.logger.Info("rejected expired oauth state",
			zap.String("platform_id", state.PlatformID),
			zap.Time("expires_at", state.ExpiresAt),
		)

		return nil, fmt.Errorf("%w: platform %s", ErrStateExpired, state.PlatformID)
	}

	return state, nil
}

// ExchangeCode trades the authorization code for tokens, returning the
// credential bag the lifecycle manager persists on connect.
func (m *OAuthManager) ExchangeCode(ctx context.Context, code, redirectURI string) (models.JSONB, error) {
	token, err := m.googleConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	credentials := models.JSONB{
		"accessToken": token.AccessToken,
		"expiresAt":   token.Expiry.UTC().Format(time.RFC3339),
	}

	if token.RefreshToken != "" {
		credentials["refreshToken"] = token.RefreshToken
	}

	return credentials, nil
}

// PruneExpired removes tokens past their window. Called periodically by
// the watcher.
func (m *OAuthManager) PruneExpired(ctx context.Context) {
	n, err := m.states.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		m.logger.Warn("failed to prune expired oauth states", zap.Error(err))
		return
	}

	if n > 0 {
		m.logger.Debug("pruned expired oauth states", zap.Int64("count", n))
	}
}

func (m *OAuthManager) googleConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     m.clientID,
		ClientSecret: m.clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       gmailScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}
