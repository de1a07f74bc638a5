package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultlink/connector-core/internal/models"
)

func TestMemory_PutGetRemove(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	conn := &models.Connection{
		ID:          "c1",
		UserID:      "u1",
		PlatformID:  "Slack",
		Credentials: models.JSONB{"botToken": "tok"},
		IsActive:    true,
	}

	require.NoError(t, m.Put(ctx, conn))

	// Lookups normalize platform case.
	got, err := m.GetActive(ctx, "u1", "SLACK")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)

	require.NoError(t, m.Remove(ctx, "u1", "slack"))

	_, err = m.GetActive(ctx, "u1", "slack")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemory_GetInactive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, &models.Connection{
		ID:         "c1",
		UserID:     "u1",
		PlatformID: "slack",
		IsActive:   false,
	}))

	_, err := m.GetActive(ctx, "u1", "slack")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemory_ListActiveByUser(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, id := range []string{"slack", "github", "gmail"} {
		require.NoError(t, m.Put(ctx, &models.Connection{
			ID:         id,
			UserID:     "u1",
			PlatformID: id,
			IsActive:   true,
		}))
	}
	require.NoError(t, m.Put(ctx, &models.Connection{
		ID:         "other",
		UserID:     "u2",
		PlatformID: "slack",
		IsActive:   true,
	}))

	conns, err := m.ListActiveByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, conns, 3)
	require.Equal(t, "github", conns[0].PlatformID)
	require.Equal(t, "gmail", conns[1].PlatformID)
	require.Equal(t, "slack", conns[2].PlatformID)
}

func TestMemory_PutCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	conn := &models.Connection{ID: "c1", UserID: "u1", PlatformID: "slack", IsActive: true}
	require.NoError(t, m.Put(ctx, conn))

	conn.ID = "mutated"

	got, err := m.GetActive(ctx, "u1", "slack")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ID)
}
