package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vaultlink/connector-core/internal/connector"
	"github.com/vaultlink/connector-core/internal/models"
	"github.com/vaultlink/connector-core/internal/platform"
)

// ConnectionStore is the durable-plus-cache view of connections the
// lifecycle manager operates on.
type ConnectionStore interface {
	Upsert(ctx context.Context, conn *models.Connection) (durable bool, err error)
	GetActive(ctx context.Context, userID, platformID string) (conn *models.Connection, fromCache bool, err error)
	ListActiveByUser(ctx context.Context, userID string) (conns []models.Connection, fromCache bool, err error)
	Deactivate(ctx context.Context, userID, platformID string) error
	UpdateCredentials(ctx context.Context, userID, platformID string, credentials models.JSONB) error
	Degraded() bool
}

// ConnectInput carries everything needed to link a platform.
type ConnectInput struct {
	UserID      string                 `validate:"required"`
	PlatformID  string                 `validate:"required"`
	Credentials map[string]interface{} `validate:"required,min=1"`
	Settings    map[string]interface{}
}

// ConnectStatus reports the outcome of a connect. Durable is false when
// the credential was accepted but only the local cache holds it.
type ConnectStatus struct {
	Connection *models.Connection
	Durable    bool
}

// Manager drives the connection lifecycle: validate against the remote
// service, persist, and route actions through the registry. One connect
// or disconnect runs at a time per (user, platform) pair.
type Manager struct {
	registry *connector.Registry
	store    ConnectionStore
	auditor  *Auditor
	view     *platform.View
	validate *validator.Validate
	logger   *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	tests    singleflight.Group
}

func NewManager(registry *connector.Registry, store ConnectionStore, auditor *Auditor, view *platform.View, logger *zap.Logger) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		auditor:  auditor,
		view:     view,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Connect probes the credential against the remote service and persists
// the connection, superseding any earlier one for the same platform.
func (m *Manager) Connect(ctx context.Context, input ConnectInput) (*ConnectStatus, error) {
	if err := m.validateInput(input); err != nil {
		return nil, err
	}

	platformID := strings.ToLower(input.PlatformID)

	handler, err := m.handlerFor(platformID)
	if err != nil {
		return nil, err
	}

	release, err := m.acquire(input.UserID, platformID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := handler.Connect(ctx, input.Credentials); err != nil {
		m.logger.Info("credential validation failed",
			zap.String("platform_id", platformID),
			zap.String("category", connector.Category(err)),
			zap.Error(err),
		)

		return nil, err
	}

	conn := &models.Connection{
		UserID:      input.UserID,
		PlatformID:  platformID,
		Credentials: models.JSONB(input.Credentials),
		Settings:    models.JSONB(input.Settings),
	}

	durable, err := m.store.Upsert(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to persist connection: %w", err)
	}

	m.view.SetConnected(input.UserID, platformID, true)

	m.logger.Info("platform connected",
		zap.String("user_id", input.UserID),
		zap.String("platform_id", platformID),
		zap.Bool("durable", durable),
	)

	return &ConnectStatus{Connection: conn, Durable: durable}, nil
}

// Disconnect revokes the remote credential best-effort and deactivates
// the stored connection. Idempotent: disconnecting an unlinked platform
// reports ErrNotConnected without side effects.
func (m *Manager) Disconnect(ctx context.Context, userID, platformID string) error {
	platformID = strings.ToLower(platformID)

	handler, err := m.handlerFor(platformID)
	if err != nil {
		return err
	}

	release, err := m.acquire(userID, platformID)
	if err != nil {
		return err
	}
	defer release()

	conn, _, err := m.store.GetActive(ctx, userID, platformID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: %s", connector.ErrNotConnected, platformID)
		}

		return fmt.Errorf("failed to load connection: %w", err)
	}

	if !handler.Disconnect(ctx, conn) {
		m.logger.Warn("remote credential revocation failed",
			zap.String("platform_id", platformID),
		)
	}

	if err := m.store.Deactivate(ctx, userID, platformID); err != nil {
		return fmt.Errorf("failed to deactivate connection: %w", err)
	}

	m.view.SetConnected(userID, platformID, false)

	m.logger.Info("platform disconnected",
		zap.String("user_id", userID),
		zap.String("platform_id", platformID),
	)

	return nil
}

// TestConnection probes the stored credential. An unlinked platform is
// a no-op reporting false; all probe failures collapse to false so
// callers can poll health without error handling. Concurrent tests for
// the same pair share one probe.
func (m *Manager) TestConnection(ctx context.Context, userID, platformID string) (bool, error) {
	platformID = strings.ToLower(platformID)

	handler, err := m.handlerFor(platformID)
	if err != nil {
		return false, err
	}

	key := userID + "|" + platformID

	ok, _, _ := m.tests.Do(key, func() (interface{}, error) {
		conn, _, err := m.store.GetActive(ctx, userID, platformID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				m.logger.Warn("health probe skipped, connection unavailable",
					zap.String("platform_id", platformID),
					zap.Error(err),
				)
			}

			return false, nil
		}

		return handler.Test(ctx, conn), nil
	})

	return ok.(bool), nil
}

// Execute routes the request to its connector and audits the attempt.
// It never returns an error: every failure becomes a failed result.
// Requests for unsupported platforms fail closed before any audit row
// is written.
func (m *Manager) Execute(ctx context.Context, req *models.ActionRequest) *models.ActionResult {
	if req == nil || req.UserID == "" || req.PlatformID == "" || req.Action == "" {
		return models.FailResult("request requires user_id, platform_id and action")
	}

	req.PlatformID = strings.ToLower(req.PlatformID)

	handler, err := m.handlerFor(req.PlatformID)
	if err != nil {
		return models.FailResult(err.Error())
	}

	conns, fromCache, err := m.store.ListActiveByUser(ctx, req.UserID)
	if err != nil {
		return models.FailResult(fmt.Sprintf("failed to load connections: %v", err))
	}

	if fromCache {
		m.logger.Warn("executing against cached connections",
			zap.String("user_id", req.UserID),
			zap.String("platform_id", req.PlatformID),
		)
	}

	active := make([]*models.Connection, 0, len(conns))
	for i := range conns {
		active = append(active, &conns[i])
	}

	entry := m.auditor.Begin(ctx, req)
	res := handler.Execute(ctx, req, active)
	m.auditor.Finish(ctx, entry, res)

	return res
}

// ListPlatforms returns the catalog with per-user connected flags.
func (m *Manager) ListPlatforms(ctx context.Context, userID string) ([]models.Platform, error) {
	conns, _, err := m.store.ListActiveByUser(ctx, userID)
	if err == nil {
		ids := make([]string, 0, len(conns))
		for _, conn := range conns {
			ids = append(ids, conn.PlatformID)
		}

		m.view.ReplaceUser(userID, ids)
	} else {
		m.logger.Warn("listing platforms from last known state", zap.Error(err))
	}

	platforms := platform.Catalog()
	for i := range platforms {
		platforms[i].IsConnected = m.view.IsConnected(userID, platforms[i].ID)
	}

	return platforms, nil
}

// GetExecutionHistory returns past attempts, newest first. An empty
// platform id spans all platforms.
func (m *Manager) GetExecutionHistory(ctx context.Context, userID, platformID string, limit int) ([]models.ExecutionLog, error) {
	if platformID == "" {
		return m.auditor.History(ctx, userID, nil, limit)
	}

	platformID = strings.ToLower(platformID)

	handler, err := m.handlerFor(platformID)
	if err != nil {
		return nil, err
	}

	return handler.ExecutionHistory(ctx, userID, limit)
}

// RefreshCredentials renews the stored credential for platforms that
// support it and persists the new bag.
func (m *Manager) RefreshCredentials(ctx context.Context, userID, platformID string) error {
	platformID = strings.ToLower(platformID)

	handler, err := m.handlerFor(platformID)
	if err != nil {
		return err
	}

	refresher, ok := handler.(connector.CredentialRefresher)
	if !ok {
		return &connector.ConfigError{Platform: platformID, Message: "credential refresh not supported"}
	}

	conn, _, err := m.store.GetActive(ctx, userID, platformID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: %s", connector.ErrNotConnected, platformID)
		}

		return fmt.Errorf("failed to load connection: %w", err)
	}

	refreshed, err := refresher.RefreshCredentials(ctx, conn)
	if err != nil {
		return err
	}

	if err := m.store.UpdateCredentials(ctx, userID, platformID, refreshed); err != nil {
		return fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	m.logger.Info("credentials refreshed",
		zap.String("user_id", userID),
		zap.String("platform_id", platformID),
	)

	return nil
}

// Degraded reports whether connection reads and writes are being served
// from the local cache.
func (m *Manager) Degraded() bool {
	return m.store.Degraded()
}

func (m *Manager) handlerFor(platformID string) (connector.Connector, error) {
	if entry, ok := platform.Lookup(platformID); ok && entry.Status == models.PlatformStatusComingSoon {
		return nil, fmt.Errorf("%w: %s is not yet available", connector.ErrUnsupportedPlatform, platformID)
	}

	return m.registry.Handler(platformID)
}

func (m *Manager) acquire(userID, platformID string) (func(), error) {
	key := userID + "|" + platformID

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.inflight[key]; busy {
		return nil, fmt.Errorf("%w: %s", connector.ErrOperationInFlight, platformID)
	}

	m.inflight[key] = struct{}{}

	return func() {
		m.mu.Lock()
		delete(m.inflight, key)
		m.mu.Unlock()
	}, nil
}

func (m *Manager) validateInput(input interface{}) error {
	err := m.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var combined error
	for _, fe := range verrs {
		combined = multierr.Append(combined, fmt.Errorf("invalid field %s: failed %s check", fe.Field(), fe.Tag()))
	}

	return combined
}
