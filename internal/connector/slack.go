package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const slackAPIURL = "https://slack.com/api"

// SlackConnector talks to the Slack Web API with a bot token.
// Slack reports failures with HTTP 200 and an ok=false body, so the
// probe inspects the payload rather than the status code alone.
type SlackConnector struct {
	baseConnector
	apiURL string
}

func NewSlackConnector(history HistoryReader) *SlackConnector {
	return &SlackConnector{
		baseConnector: newBaseConnector("slack", history),
		apiURL:        slackAPIURL,
	}
}

func (c *SlackConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "botToken")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *SlackConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("botToken")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *SlackConnector) Disconnect(ctx context.Context, conn *models.Connection) bool {
	// Best-effort remote revoke; local removal must not depend on it.
	if token, ok := conn.Credential("botToken"); ok {
		_, _, _ = c.doJSON(ctx, http.MethodPost, c.apiURL+"/auth.revoke", c.headers(token), nil)
	}

	return true
}

func (c *SlackConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("botToken")
		if !ok {
			return models.FailResult("slack connection missing botToken")
		}

		switch req.Action {
		case "send-message":
			return c.sendMessage(ctx, token, req.Params)
		case "list-channels":
			return c.listChannels(ctx, token)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *SlackConnector) sendMessage(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	channel, ok := stringParam(params, "channel")
	if !ok {
		return models.FailResult("send-message requires a channel param")
	}

	text, ok := stringParam(params, "text")
	if !ok {
		return models.FailResult("send-message requires a text param")
	}

	body := map[string]interface{}{
		"channel": channel,
		"text":    text,
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, c.apiURL+"/chat.postMessage", c.headers(token), body)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("send-message", status, raw)
	}

	payload := decodeJSON(raw)
	if ok, _ := payload["ok"].(bool); !ok {
		return models.FailResult(fmt.Sprintf("slack send-message failed: %v", payload["error"]))
	}

	return models.OKResult(payload)
}

func (c *SlackConnector) listChannels(ctx context.Context, token string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.apiURL+"/conversations.list?limit=200", c.headers(token), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-channels", status, raw)
	}

	payload := decodeJSON(raw)
	if ok, _ := payload["ok"].(bool); !ok {
		return models.FailResult(fmt.Sprintf("slack list-channels failed: %v", payload["error"]))
	}

	return models.OKResult(payload["channels"])
}

// probe is a read-only auth.test call.
func (c *SlackConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodPost, c.apiURL+"/auth.test", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	var resp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}

	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("slack: failed to parse auth.test response: %w", err)
	}

	if !resp.OK {
		return &AuthError{Platform: c.id, Message: fmt.Sprintf("token rejected: %s", resp.Error)}
	}

	return nil
}

func (c *SlackConnector) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
