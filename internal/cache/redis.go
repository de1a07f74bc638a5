package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/vaultlink/connector-core/internal/models"
)

// Redis is a shared Cache for deployments running more than one worker,
// so every instance sees the same fallback view. Entries live in one
// hash per user keyed by platform.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func userKey(userID string) string {
	return "connections:" + userID
}

func (r *Redis) Put(ctx context.Context, conn *models.Connection) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("failed to encode cached connection: %w", err)
	}

	err = r.client.HSet(ctx, userKey(conn.UserID), strings.ToLower(conn.PlatformID), payload).Err()
	if err != nil {
		return fmt.Errorf("failed to cache connection: %w", err)
	}

	return nil
}

func (r *Redis) Remove(ctx context.Context, userID, platformID string) error {
	err := r.client.HDel(ctx, userKey(userID), strings.ToLower(platformID)).Err()
	if err != nil {
		return fmt.Errorf("failed to evict cached connection: %w", err)
	}

	return nil
}

func (r *Redis) GetActive(ctx context.Context, userID, platformID string) (*models.Connection, error) {
	payload, err := r.client.HGet(ctx, userKey(userID), strings.ToLower(platformID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cached connection: %w", err)
	}

	var conn models.Connection
	if err := json.Unmarshal(payload, &conn); err != nil {
		return nil, fmt.Errorf("failed to decode cached connection: %w", err)
	}

	if !conn.IsActive {
		return nil, models.ErrNotFound
	}

	return &conn, nil
}

func (r *Redis) ListActiveByUser(ctx context.Context, userID string) ([]models.Connection, error) {
	entries, err := r.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cached connections: %w", err)
	}

	conns := make([]models.Connection, 0, len(entries))
	for _, payload := range entries {
		var conn models.Connection
		if err := json.Unmarshal([]byte(payload), &conn); err != nil {
			return nil, fmt.Errorf("failed to decode cached connection: %w", err)
		}
		if conn.IsActive {
			conns = append(conns, conn)
		}
	}

	sort.Slice(conns, func(i, j int) bool { return conns[i].PlatformID < conns[j].PlatformID })

	return conns, nil
}
