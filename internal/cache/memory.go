package cache

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vaultlink/connector-core/internal/models"
)

// Memory is an in-process Cache, used in tests and as the last-resort
// fallback when no cache path is configured.
type Memory struct {
	mu    sync.RWMutex
	conns map[string]map[string]models.Connection // userID -> platformID -> connection
}

func NewMemory() *Memory {
	return &Memory{conns: make(map[string]map[string]models.Connection)}
}

func (m *Memory) Put(_ context.Context, conn *models.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPlatform, ok := m.conns[conn.UserID]
	if !ok {
		byPlatform = make(map[string]models.Connection)
		m.conns[conn.UserID] = byPlatform
	}

	byPlatform[strings.ToLower(conn.PlatformID)] = *conn

	return nil
}

func (m *Memory) Remove(_ context.Context, userID, platformID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conns[userID], strings.ToLower(platformID))

	return nil
}

func (m *Memory) GetActive(_ context.Context, userID, platformID string) (*models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[userID][strings.ToLower(platformID)]
	if !ok || !conn.IsActive {
		return nil, models.ErrNotFound
	}

	out := conn

	return &out, nil
}

func (m *Memory) ListActiveByUser(_ context.Context, userID string) ([]models.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]models.Connection, 0, len(m.conns[userID]))
	for _, conn := range m.conns[userID] {
		if conn.IsActive {
			conns = append(conns, conn)
		}
	}

	sort.Slice(conns, func(i, j int) bool { return conns[i].PlatformID < conns[j].PlatformID })

	return conns, nil
}
