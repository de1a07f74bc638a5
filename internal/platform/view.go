package platform

import (
	"strings"
	"sync"
)

// View tracks which platforms are currently usable per user. It mirrors
// the connection set: the lifecycle manager flips entries on connect and
// disconnect, and callers receive a recomputed copy, never the shared
// state.
type View struct {
	mu        sync.RWMutex
	connected map[string]map[string]bool // userID -> platformID -> connected
}

func NewView() *View {
	return &View{connected: make(map[string]map[string]bool)}
}

// SetConnected flips the connected flag for one (user, platform) pair.
func (v *View) SetConnected(userID, platformID string, connected bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := strings.ToLower(platformID)

	byPlatform, ok := v.connected[userID]
	if !ok {
		byPlatform = make(map[string]bool)
		v.connected[userID] = byPlatform
	}

	if connected {
		byPlatform[key] = true
	} else {
		delete(byPlatform, key)
	}
}

// IsConnected reports whether the user has an active connection for the
// platform.
func (v *View) IsConnected(userID, platformID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.connected[userID][strings.ToLower(platformID)]
}

// ReplaceUser resets a user's entries from an authoritative platform id
// list, used when seeding the view from the connection store.
func (v *View) ReplaceUser(userID string, platformIDs []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	byPlatform := make(map[string]bool, len(platformIDs))
	for _, id := range platformIDs {
		byPlatform[strings.ToLower(id)] = true
	}

	v.connected[userID] = byPlatform
}
