package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/models"
	"github.com/vaultlink/connector-core/internal/repository"
)

// fakeStateStore mimics the single-use consume semantics of the
// database-backed store.
type fakeStateStore struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{states: make(map[string]*models.OAuthState)}
}

func (f *fakeStateStore) Create(_ context.Context, state *models.OAuthState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.states[state.StateToken] = state

	return nil
}

func (f *fakeStateStore) Consume(_ context.Context, stateToken string) (*models.OAuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.states[stateToken]
	if !ok {
		return nil, repository.ErrStateNotFound
	}

	delete(f.states, stateToken)

	return state, nil
}

func (f *fakeStateStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for token, state := range f.states {
		if !now.Before(state.ExpiresAt) {
			delete(f.states, token)
			n++
		}
	}

	return n, nil
}

func newTestOAuth(ttl time.Duration) (*OAuthManager, *fakeStateStore) {
	store := newFakeStateStore()

	return NewOAuthManager(store, ttl, "client-id", "client-secret", zap.NewNop()), store
}

func TestBeginAuthorization_Gmail(t *testing.T) {
	m, _ := newTestOAuth(10 * time.Minute)

	state, authURL, err := m.BeginAuthorization(context.Background(), "u1", "Gmail", "https://app.example/callback")
	require.NoError(t, err)
	require.Equal(t, "gmail", state.PlatformID)
	require.NotEmpty(t, state.StateToken)

	require.Contains(t, authURL, "accounts.google.com")
	require.Contains(t, authURL, "client-id")
	require.Contains(t, authURL, state.StateToken)
	require.True(t, strings.Contains(authURL, "access_type=offline"))
}

func TestBeginAuthorization_NoProviderURL(t *testing.T) {
	m, _ := newTestOAuth(10 * time.Minute)

	state, authURL, err := m.BeginAuthorization(context.Background(), "u1", "dropbox", "https://app.example/callback")
	require.NoError(t, err)
	require.NotEmpty(t, state.StateToken)
	require.Empty(t, authURL)
}

func TestCompleteAuthorization_SingleUse(t *testing.T) {
	m, _ := newTestOAuth(10 * time.Minute)
	ctx := context.Background()

	state, _, err := m.BeginAuthorization(ctx, "u1", "gmail", "")
	require.NoError(t, err)

	got, err := m.CompleteAuthorization(ctx, state.StateToken)
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)

	// The same token never validates twice.
	_, err = m.CompleteAuthorization(ctx, state.StateToken)
	require.ErrorIs(t, err, repository.ErrStateNotFound)
}

func TestCompleteAuthorization_Expired(t *testing.T) {
	m, _ := newTestOAuth(-1 * time.Second)
	ctx := context.Background()

	state, _, err := m.BeginAuthorization(ctx, "u1", "gmail", "")
	require.NoError(t, err)

	_, err = m.CompleteAuthorization(ctx, state.StateToken)
	require.ErrorIs(t, err, ErrStateExpired)

	// Expiry does not grant a second chance either.
	_, err = m.CompleteAuthorization(ctx, state.StateToken)
	require.ErrorIs(t, err, repository.ErrStateNotFound)
}

func TestCompleteAuthorization_UnknownToken(t *testing.T) {
	m, _ := newTestOAuth(10 * time.Minute)

	_, err := m.CompleteAuthorization(context.Background(), "forged-token")
	require.ErrorIs(t, err, repository.ErrStateNotFound)
}

func TestPruneExpired(t *testing.T) {
	m, store := newTestOAuth(-1 * time.Second)
	ctx := context.Background()

	_, _, err := m.BeginAuthorization(ctx, "u1", "gmail", "")
	require.NoError(t, err)

	m.PruneExpired(ctx)

	require.Empty(t, store.states)
}
