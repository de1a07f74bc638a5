package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vaultlink/connector-core/internal/connector"
	"github.com/vaultlink/connector-core/internal/models"
	"github.com/vaultlink/connector-core/internal/platform"
)

// stubConnector is a scriptable connector for lifecycle tests.
type stubConnector struct {
	id          string
	connectErr  error
	testResult  bool
	execResult  *models.ActionResult
	disconnects int
	blockStart  chan struct{}
	blockWait   chan struct{}
}

func (s *stubConnector) ServerType() string { return s.id }

func (s *stubConnector) SupportsPlatform(id string) bool { return strings.EqualFold(id, s.id) }

func (s *stubConnector) Connect(context.Context, map[string]interface{}) error {
	if s.blockStart != nil {
		close(s.blockStart)
		<-s.blockWait
		s.blockStart = nil
	}

	return s.connectErr
}

func (s *stubConnector) Test(context.Context, *models.Connection) bool { return s.testResult }

func (s *stubConnector) Disconnect(context.Context, *models.Connection) bool {
	s.disconnects++
	return true
}

func (s *stubConnector) Execute(_ context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	if s.execResult != nil {
		return s.execResult
	}

	return models.OKResult(map[string]interface{}{"action": req.Action})
}

func (s *stubConnector) ExecutionHistory(context.Context, string, int) ([]models.ExecutionLog, error) {
	return []models.ExecutionLog{{PlatformID: s.id}}, nil
}

// refreshConnector additionally supports credential renewal.
type refreshConnector struct {
	stubConnector
	refreshed  models.JSONB
	refreshErr error
}

func (r *refreshConnector) RefreshCredentials(context.Context, *models.Connection) (models.JSONB, error) {
	return r.refreshed, r.refreshErr
}

// fakeStore is an in-memory ConnectionStore.
type fakeStore struct {
	mu       sync.Mutex
	conns    map[string]*models.Connection
	durable  bool
	degraded bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{conns: make(map[string]*models.Connection), durable: true}
}

func (f *fakeStore) key(userID, platformID string) string { return userID + "|" + platformID }

func (f *fakeStore) Upsert(_ context.Context, conn *models.Connection) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn.IsActive = true
	f.conns[f.key(conn.UserID, conn.PlatformID)] = conn

	return f.durable, nil
}

func (f *fakeStore) GetActive(_ context.Context, userID, platformID string) (*models.Connection, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn, ok := f.conns[f.key(userID, platformID)]
	if !ok || !conn.IsActive {
		return nil, false, models.ErrNotFound
	}

	return conn, false, nil
}

func (f *fakeStore) ListActiveByUser(_ context.Context, userID string) ([]models.Connection, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Connection
	for _, conn := range f.conns {
		if conn.UserID == userID && conn.IsActive {
			out = append(out, *conn)
		}
	}

	return out, false, nil
}

func (f *fakeStore) Deactivate(_ context.Context, userID, platformID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if conn, ok := f.conns[f.key(userID, platformID)]; ok {
		conn.IsActive = false
	}

	return nil
}

func (f *fakeStore) UpdateCredentials(_ context.Context, userID, platformID string, credentials models.JSONB) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	conn, ok := f.conns[f.key(userID, platformID)]
	if !ok || !conn.IsActive {
		return models.ErrNotFound
	}

	conn.Credentials = credentials

	return nil
}

func (f *fakeStore) Degraded() bool { return f.degraded }

func newTestManager(t *testing.T, connectors ...connector.Connector) (*Manager, *fakeStore, *fakeLogStore) {
	t.Helper()

	store := newFakeStore()
	logs := newFakeLogStore()
	auditor := NewAuditor(logs, zap.NewNop())
	view := platform.NewView()

	return NewManager(connector.NewRegistry(connectors...), store, auditor, view, zap.NewNop()), store, logs
}

func slackCreds() map[string]interface{} {
	return map[string]interface{}{"botToken": "xoxb-123"}
}

func TestConnect_Success(t *testing.T) {
	stub := &stubConnector{id: "slack", testResult: true}
	m, store, _ := newTestManager(t, stub)

	status, err := m.Connect(context.Background(), ConnectInput{
		UserID:      "u1",
		PlatformID:  "Slack",
		Credentials: slackCreds(),
	})
	require.NoError(t, err)
	require.True(t, status.Durable)
	require.Equal(t, "slack", status.Connection.PlatformID)

	stored, _, err := store.GetActive(context.Background(), "u1", "slack")
	require.NoError(t, err)
	require.True(t, stored.IsActive)

	platforms, err := m.ListPlatforms(context.Background(), "u1")
	require.NoError(t, err)
	for _, p := range platforms {
		if p.ID == "slack" {
			require.True(t, p.IsConnected)
		}
	}
}

func TestConnect_InvalidInput(t *testing.T) {
	m, _, _ := newTestManager(t, &stubConnector{id: "slack"})

	_, err := m.Connect(context.Background(), ConnectInput{
		UserID:     "u1",
		PlatformID: "slack",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Credentials")
}

func TestConnect_UnsupportedPlatform(t *testing.T) {
	m, _, _ := newTestManager(t, &stubConnector{id: "slack"})

	_, err := m.Connect(context.Background(), ConnectInput{
		UserID:      "u1",
		PlatformID:  "linkedin",
		Credentials: slackCreds(),
	})
	require.ErrorIs(t, err, connector.ErrUnsupportedPlatform)
}

func TestConnect_ComingSoonPlatform(t *testing.T) {
	// Registered or not, a coming-soon catalog entry is not connectable.
	m, _, _ := newTestManager(t, &stubConnector{id: "linear"})

	_, err := m.Connect(context.Background(), ConnectInput{
		UserID:      "u1",
		PlatformID:  "linear",
		Credentials: map[string]interface{}{"apiKey": "lin_123"},
	})
	require.ErrorIs(t, err, connector.ErrUnsupportedPlatform)
}

func TestConnect_CredentialRejected(t *testing.T) {
	stub := &stubConnector{
		id:         "slack",
		connectErr: &connector.AuthError{Platform: "slack", Message: "token rejected"},
	}
	m, store, _ := newTestManager(t, stub)

	_, err := m.Connect(context.Background(), ConnectInput{
		UserID:      "u1",
		PlatformID:  "slack",
		Credentials: slackCreds(),
	})
	require.Error(t, err)
	require.Equal(t, connector.CategoryAuth, connector.Category(err))

	_, _, err = store.GetActive(context.Background(), "u1", "slack")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestConnect_Supersedes(t *testing.T) {
	stub := &stubConnector{id: "slack"}
	m, store, _ := newTestManager(t, stub)
	ctx := context.Background()

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	_, err = m.Connect(ctx, ConnectInput{
		UserID:      "u1",
		PlatformID:  "slack",
		Credentials: map[string]interface{}{"botToken": "xoxb-new"},
	})
	require.NoError(t, err)

	stored, _, err := store.GetActive(ctx, "u1", "slack")
	require.NoError(t, err)
	require.Equal(t, "xoxb-new", stored.Credentials["botToken"])
}

func TestConnect_RejectsConcurrentOperation(t *testing.T) {
	stub := &stubConnector{
		id:         "slack",
		blockStart: make(chan struct{}),
		blockWait:  make(chan struct{}),
	}
	m, _, _ := newTestManager(t, stub)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
		done <- err
	}()

	<-stub.blockStart

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.ErrorIs(t, err, connector.ErrOperationInFlight)

	close(stub.blockWait)
	require.NoError(t, <-done)

	// The slot frees up once the first operation finishes.
	_, err = m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)
}

func TestDisconnect_NotConnected(t *testing.T) {
	stub := &stubConnector{id: "slack"}
	m, _, _ := newTestManager(t, stub)

	err := m.Disconnect(context.Background(), "u1", "slack")
	require.ErrorIs(t, err, connector.ErrNotConnected)
	require.Zero(t, stub.disconnects)
}

func TestDisconnect_Success(t *testing.T) {
	stub := &stubConnector{id: "slack"}
	m, store, _ := newTestManager(t, stub)
	ctx := context.Background()

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(ctx, "u1", "slack"))
	require.Equal(t, 1, stub.disconnects)

	_, _, err = store.GetActive(ctx, "u1", "slack")
	require.ErrorIs(t, err, models.ErrNotFound)

	// A second disconnect finds nothing to do.
	err = m.Disconnect(ctx, "u1", "slack")
	require.ErrorIs(t, err, connector.ErrNotConnected)
}

func TestTestConnection(t *testing.T) {
	stub := &stubConnector{id: "slack", testResult: true}
	m, _, _ := newTestManager(t, stub)
	ctx := context.Background()

	// Testing an unlinked platform is a no-op reporting false.
	healthy, err := m.TestConnection(ctx, "u1", "slack")
	require.NoError(t, err)
	require.False(t, healthy)

	_, err = m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	healthy, err = m.TestConnection(ctx, "u1", "slack")
	require.NoError(t, err)
	require.True(t, healthy)
}

func TestExecute_AuditsAttempt(t *testing.T) {
	stub := &stubConnector{id: "slack"}
	m, _, logs := newTestManager(t, stub)
	ctx := context.Background()

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	res := m.Execute(ctx, &models.ActionRequest{
		PlatformID: "slack",
		Action:     "send-message",
		UserID:     "u1",
		Params:     map[string]interface{}{"channel": "C1", "text": "hi"},
	})
	require.True(t, res.Success)

	require.Len(t, logs.rows, 1)
	row := logs.rows[0]
	require.Equal(t, models.ExecutionStatusSuccess, row.Status)
	require.Equal(t, "send-message", row.Action)
	require.NotNil(t, row.ExecutionTimeMs)
}

func TestExecute_FailureAudited(t *testing.T) {
	stub := &stubConnector{id: "slack", execResult: models.FailResult("channel not found")}
	m, _, logs := newTestManager(t, stub)
	ctx := context.Background()

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	res := m.Execute(ctx, &models.ActionRequest{
		PlatformID: "slack",
		Action:     "send-message",
		UserID:     "u1",
	})
	require.False(t, res.Success)

	require.Len(t, logs.rows, 1)
	require.Equal(t, models.ExecutionStatusError, logs.rows[0].Status)
	require.NotNil(t, logs.rows[0].ErrorMessage)
	require.Equal(t, "channel not found", *logs.rows[0].ErrorMessage)
}

func TestExecute_UnsupportedPlatformWritesNothing(t *testing.T) {
	m, _, logs := newTestManager(t, &stubConnector{id: "slack"})

	res := m.Execute(context.Background(), &models.ActionRequest{
		PlatformID: "linkedin",
		Action:     "send-message",
		UserID:     "u1",
	})
	require.False(t, res.Success)
	require.Empty(t, logs.rows)
}

func TestExecute_MissingFields(t *testing.T) {
	m, _, logs := newTestManager(t, &stubConnector{id: "slack"})

	res := m.Execute(context.Background(), &models.ActionRequest{PlatformID: "slack"})
	require.False(t, res.Success)
	require.Empty(t, logs.rows)
}

func TestGetExecutionHistory_Routing(t *testing.T) {
	stub := &stubConnector{id: "slack"}
	m, _, logs := newTestManager(t, stub)
	ctx := context.Background()

	logs.rows = append(logs.rows, &models.ExecutionLog{UserID: "u1", PlatformID: "github"})

	// Platform-scoped history goes through the connector.
	history, err := m.GetExecutionHistory(ctx, "u1", "slack", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "slack", history[0].PlatformID)

	// User-wide history comes from the audit store.
	history, err = m.GetExecutionHistory(ctx, "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "github", history[0].PlatformID)
}

func TestRefreshCredentials(t *testing.T) {
	stub := &refreshConnector{
		stubConnector: stubConnector{id: "gmail"},
		refreshed:     models.JSONB{"accessToken": "fresh"},
	}
	m, store, _ := newTestManager(t, stub)
	ctx := context.Background()

	err := m.RefreshCredentials(ctx, "u1", "gmail")
	require.ErrorIs(t, err, connector.ErrNotConnected)

	_, err = m.Connect(ctx, ConnectInput{
		UserID:      "u1",
		PlatformID:  "gmail",
		Credentials: map[string]interface{}{"accessToken": "stale", "refreshToken": "r1"},
	})
	require.NoError(t, err)

	require.NoError(t, m.RefreshCredentials(ctx, "u1", "gmail"))

	conn, _, err := store.GetActive(ctx, "u1", "gmail")
	require.NoError(t, err)
	require.Equal(t, "fresh", conn.Credentials["accessToken"])
}

func TestRefreshCredentials_Unsupported(t *testing.T) {
	m, _, _ := newTestManager(t, &stubConnector{id: "slack"})
	ctx := context.Background()

	_, err := m.Connect(ctx, ConnectInput{UserID: "u1", PlatformID: "slack", Credentials: slackCreds()})
	require.NoError(t, err)

	err = m.RefreshCredentials(ctx, "u1", "slack")
	var configErr *connector.ConfigError
	require.ErrorAs(t, err, &configErr)
}
