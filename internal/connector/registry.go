package connector

import (
	"fmt"
	"sort"
	"strings"
)

// Registry is the static, process-wide mapping from platform id to
// connector. It is built once at startup and read-only afterwards; a
// duplicate registration is a configuration error and panics during
// construction rather than surfacing at runtime.
type Registry struct {
	handlers map[string]Connector
}

// NewRegistry builds the registry from the given connectors.
func NewRegistry(connectors ...Connector) *Registry {
	handlers := make(map[string]Connector, len(connectors))

	for _, c := range connectors {
		key := strings.ToLower(c.ServerType())
		if _, exists := handlers[key]; exists {
			panic(fmt.Sprintf("duplicate connector registration for platform %q", key))
		}

		handlers[key] = c
	}

	return &Registry{handlers: handlers}
}

// IsPlatformSupported reports whether a connector is registered for the
// platform id.
func (r *Registry) IsPlatformSupported(id string) bool {
	_, ok := r.handlers[strings.ToLower(id)]
	return ok
}

// Handler returns the connector for the platform id. Unknown platforms
// fail closed with ErrUnsupportedPlatform; there is no default handler.
func (r *Registry) Handler(id string) (Connector, error) {
	c, ok := r.handlers[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, id)
	}

	return c, nil
}

// Platforms returns the registered platform ids in stable order.
func (r *Registry) Platforms() []string {
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
