package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vaultlink/connector-core/internal/models"
)

const defaultRequestTimeout = 30 * time.Second

// Connector is the fixed capability contract every platform adapter
// implements. Execute may never leak an error or panic: every failure is
// converted to a failed ActionResult so callers can treat all platforms
// uniformly.
type Connector interface {
	// ServerType returns the constant platform identifier, equal to the
	// value used as the registry key.
	ServerType() string

	// SupportsPlatform is a pure case-insensitive match against the
	// connector's own identifier.
	SupportsPlatform(id string) bool

	// Connect validates the credential against the remote service with
	// one read-only probe call. It has no side effect on the connector;
	// persistence belongs to the lifecycle manager.
	Connect(ctx context.Context, credentials map[string]interface{}) error

	// Test is a cheap idempotent probe. It never mutates remote state
	// and returns false instead of failing so callers can poll health.
	Test(ctx context.Context, conn *models.Connection) bool

	// Disconnect revokes the remote token best-effort. It reports
	// success even when the remote revoke fails or is unsupported;
	// local credential removal must not be blocked by a remote call.
	Disconnect(ctx context.Context, conn *models.Connection) bool

	// Execute looks up its own active connection among active,
	// dispatches on the action verb, and converts every failure into a
	// failed ActionResult.
	Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult

	// ExecutionHistory returns past action attempts for this platform,
	// newest first, bounded by limit.
	ExecutionHistory(ctx context.Context, userID string, limit int) ([]models.ExecutionLog, error)
}

// HistoryReader is the read side of the execution log used by connectors
// to report their own history.
type HistoryReader interface {
	ListByUser(ctx context.Context, userID string, platformID *string, limit int) ([]models.ExecutionLog, error)
}

// baseConnector carries the pieces shared by every REST connector: the
// platform id, a bounded HTTP client, and the history reader.
type baseConnector struct {
	id      string
	client  *http.Client
	history HistoryReader
}

func newBaseConnector(id string, history HistoryReader) baseConnector {
	return baseConnector{
		id: id,
		client: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		history: history,
	}
}

func (b *baseConnector) ServerType() string {
	return b.id
}

func (b *baseConnector) SupportsPlatform(id string) bool {
	return strings.EqualFold(id, b.id)
}

func (b *baseConnector) ExecutionHistory(ctx context.Context, userID string, limit int) ([]models.ExecutionLog, error) {
	if b.history == nil {
		return nil, nil
	}

	platform := b.id

	logs, err := b.history.ListByUser(ctx, userID, &platform, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read execution history: %w", err)
	}

	return logs, nil
}

// activeConnection finds this connector's active connection among the
// caller-provided set.
func (b *baseConnector) activeConnection(active []*models.Connection) *models.Connection {
	for _, conn := range active {
		if conn != nil && conn.IsActive && strings.EqualFold(conn.PlatformID, b.id) {
			return conn
		}
	}

	return nil
}

// run wraps an action dispatch with the connection lookup and a recover
// barrier so nothing escapes Execute.
func (b *baseConnector) run(active []*models.Connection, dispatch func(conn *models.Connection) *models.ActionResult) (res *models.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.FailResult(fmt.Sprintf("%s: internal error: %v", b.id, r))
		}
	}()

	conn := b.activeConnection(active)
	if conn == nil {
		return models.FailResult(fmt.Sprintf("no active connection for %s", b.id))
	}

	return dispatch(conn)
}

// doJSON performs one bounded HTTP round-trip with a JSON body and
// returns the status code and raw response body. Transport failures and
// timeouts come back as TransientError.
func (b *baseConnector) doJSON(ctx context.Context, method, url string, headers map[string]string, body interface{}) (int, []byte, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, nil, &TransientError{Platform: b.id, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransientError{Platform: b.id, Message: "failed to read response", Err: err}
	}

	return resp.StatusCode, raw, nil
}

// probeError maps a non-2xx probe status to the error taxonomy.
func (b *baseConnector) probeError(status int, raw []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Platform: b.id, Message: fmt.Sprintf("credential rejected (status %d)", status)}
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return &TransientError{Platform: b.id, Message: fmt.Sprintf("remote unavailable (status %d)", status)}
	default:
		return fmt.Errorf("%s: unexpected probe status %d: %s", b.id, status, truncate(raw, 200))
	}
}

// actionFailure renders a non-2xx action response as a failed result.
func (b *baseConnector) actionFailure(action string, status int, raw []byte) *models.ActionResult {
	return models.FailResult(fmt.Sprintf("%s %s failed (status %d): %s", b.id, action, status, truncate(raw, 200)))
}

func (b *baseConnector) unknownAction(action string) *models.ActionResult {
	return models.FailResult(fmt.Sprintf("unsupported action %q for %s", action, b.id))
}

// decodeJSON parses a response body into a generic map for the result
// envelope.
func decodeJSON(raw []byte) map[string]interface{} {
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"raw": string(raw)}
	}

	return out
}

func truncate(raw []byte, n int) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > n {
		return s[:n] + "..."
	}

	return s
}

// stringParam narrows one opaque param to a non-empty string.
func stringParam(params map[string]interface{}, key string) (string, bool) {
	if params == nil {
		return "", false
	}

	raw, ok := params[key]
	if !ok {
		return "", false
	}

	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}

	return s, true
}

// credentialString narrows one opaque credential to a non-empty string,
// failing with ConfigError when absent.
func credentialString(platform string, credentials map[string]interface{}, key string) (string, error) {
	raw, ok := credentials[key]
	if !ok {
		return "", &ConfigError{Platform: platform, Message: fmt.Sprintf("missing required credential %q", key)}
	}

	s, ok := raw.(string)
	if !ok || s == "" {
		return "", &ConfigError{Platform: platform, Message: fmt.Sprintf("credential %q must be a non-empty string", key)}
	}

	return s, nil
}
