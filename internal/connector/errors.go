package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned when a platform id has no
	// registered connector. Callers must not retry.
	ErrUnsupportedPlatform = errors.New("platform not supported")

	// ErrNotConnected is returned when an action targets a platform
	// with no active connection for the user.
	ErrNotConnected = errors.New("platform not connected")

	// ErrOperationInFlight is returned when a connect or disconnect is
	// already running for the same (user, platform) pair.
	ErrOperationInFlight = errors.New("operation already in flight for platform")
)

// Error categories surfaced to callers so the consuming layer can decide
// whether a retry affordance makes sense.
const (
	CategoryConfig       = "config"
	CategoryAuth         = "auth"
	CategoryTransient    = "transient"
	CategoryUnsupported  = "unsupported"
	CategoryNotConnected = "not-connected"
	CategoryConflict     = "conflict"
	CategoryUnknown      = "unknown"
)

// ConfigError means required credential fields are absent or malformed.
// The user must fix the input; automatic retry is pointless.
type ConfigError struct {
	Platform string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

// AuthError means the remote service rejected the credential.
type AuthError struct {
	Platform string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

// TransientError means a network failure, timeout, or remote 5xx.
// Safe to retry with backoff.
type TransientError struct {
	Platform string
	Message  string
	Err      error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Platform, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Platform, e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Category maps any error crossing the connector boundary to one of the
// category constants.
func Category(err error) string {
	var (
		configErr    *ConfigError
		authErr      *AuthError
		transientErr *TransientError
	)

	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrUnsupportedPlatform):
		return CategoryUnsupported
	case errors.Is(err, ErrNotConnected):
		return CategoryNotConnected
	case errors.Is(err, ErrOperationInFlight):
		return CategoryConflict
	case errors.As(err, &configErr):
		return CategoryConfig
	case errors.As(err, &authErr):
		return CategoryAuth
	case errors.As(err, &transientErr):
		return CategoryTransient
	default:
		return CategoryUnknown
	}
}
