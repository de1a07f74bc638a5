package connector

import (
	"context"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const telegramAPIURL = "https://api.telegram.org"

// TelegramConnector talks to the Telegram Bot API. The bot token is
// carried in the URL path, never in a header.
type TelegramConnector struct {
	baseConnector
}

func NewTelegramConnector(history HistoryReader) *TelegramConnector {
	return &TelegramConnector{baseConnector: newBaseConnector("telegram", history)}
}

func (c *TelegramConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "apiKey")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *TelegramConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("apiKey")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *TelegramConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Bot tokens are revoked through BotFather only.
	return true
}

func (c *TelegramConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("apiKey")
		if !ok {
			return models.FailResult("telegram connection missing apiKey")
		}

		switch req.Action {
		case "send-message":
			return c.sendMessage(ctx, token, req.Params)
		case "get-updates":
			return c.getUpdates(ctx, token)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *TelegramConnector) sendMessage(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	chatID, ok := stringParam(params, "chatId")
	if !ok {
		return models.FailResult("send-message requires a chatId param")
	}

	text, ok := stringParam(params, "text")
	if !ok {
		return models.FailResult("send-message requires a text param")
	}

	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, c.methodURL(token, "sendMessage"), nil, body)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("send-message", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *TelegramConnector) getUpdates(ctx context.Context, token string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.methodURL(token, "getUpdates"), nil, nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("get-updates", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *TelegramConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, c.methodURL(token, "getMe"), nil, nil)
	if err != nil {
		return err
	}

	// Telegram answers 404 for a malformed token; treat it as a
	// rejected credential rather than a missing endpoint.
	if status == http.StatusNotFound {
		return &AuthError{Platform: c.id, Message: "bot token rejected"}
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *TelegramConnector) methodURL(token, method string) string {
	return telegramAPIURL + "/bot" + token + "/" + method
}
