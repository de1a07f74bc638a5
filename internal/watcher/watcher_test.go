package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/config"
	"github.com/vaultlink/connector-core/internal/connector"
	"github.com/vaultlink/connector-core/internal/models"
)

type fakeLister struct {
	conns []models.Connection
	err   error
}

func (f *fakeLister) ListAllActive(context.Context) ([]models.Connection, error) {
	return f.conns, f.err
}

type fakeHealth struct {
	healthy       map[string]bool
	refreshErr    error
	refreshed     []string
	healAfterward bool
}

func (f *fakeHealth) key(userID, platformID string) string { return userID + "|" + platformID }

func (f *fakeHealth) TestConnection(_ context.Context, userID, platformID string) (bool, error) {
	return f.healthy[f.key(userID, platformID)], nil
}

func (f *fakeHealth) RefreshCredentials(_ context.Context, userID, platformID string) error {
	f.refreshed = append(f.refreshed, platformID)

	if f.refreshErr != nil {
		return f.refreshErr
	}

	if f.healAfterward {
		f.healthy[f.key(userID, platformID)] = true
	}

	return nil
}

type fakePruner struct {
	calls int
}

func (f *fakePruner) PruneExpired(context.Context) { f.calls++ }

func newTestWatcher(lister *fakeLister, health *fakeHealth) (*Watcher, *fakePruner) {
	pruner := &fakePruner{}
	cfg := &config.Config{PollInterval: 1}

	return New(cfg, lister, health, pruner, zap.NewNop()), pruner
}

func TestSweep_HealthyConnection(t *testing.T) {
	lister := &fakeLister{conns: []models.Connection{
		{UserID: "u1", PlatformID: "slack", IsActive: true},
	}}
	health := &fakeHealth{healthy: map[string]bool{"u1|slack": true}}

	w, _ := newTestWatcher(lister, health)
	w.sweep(context.Background())

	require.Empty(t, health.refreshed)
	require.True(t, w.lastHealth["u1|slack"])
}

func TestSweep_RefreshHealsConnection(t *testing.T) {
	lister := &fakeLister{conns: []models.Connection{
		{UserID: "u1", PlatformID: "gmail", IsActive: true},
	}}
	health := &fakeHealth{
		healthy:       map[string]bool{"u1|gmail": false},
		healAfterward: true,
	}

	w, _ := newTestWatcher(lister, health)
	w.sweep(context.Background())

	require.Equal(t, []string{"gmail"}, health.refreshed)
	require.True(t, w.lastHealth["u1|gmail"])
}

func TestSweep_RefreshUnsupported(t *testing.T) {
	lister := &fakeLister{conns: []models.Connection{
		{UserID: "u1", PlatformID: "slack", IsActive: true},
	}}
	health := &fakeHealth{
		healthy:    map[string]bool{"u1|slack": false},
		refreshErr: &connector.ConfigError{Platform: "slack", Message: "credential refresh not supported"},
	}

	w, _ := newTestWatcher(lister, health)
	w.sweep(context.Background())

	require.False(t, w.lastHealth["u1|slack"])
}

func TestSweep_SkipsWhenListUnavailable(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	health := &fakeHealth{healthy: map[string]bool{}}

	w, _ := newTestWatcher(lister, health)
	w.sweep(context.Background())

	require.Empty(t, w.lastHealth)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	lister := &fakeLister{}
	health := &fakeHealth{healthy: map[string]bool{}}
	w, pruner := newTestWatcher(lister, health)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Start(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, pruner.calls)
}
