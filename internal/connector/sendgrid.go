package connector

import (
	"context"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const sendgridAPIURL = "https://api.sendgrid.com/v3"

// SendGridConnector sends transactional email through the SendGrid v3
// API with an API key.
type SendGridConnector struct {
	baseConnector
}

func NewSendGridConnector(history HistoryReader) *SendGridConnector {
	return &SendGridConnector{baseConnector: newBaseConnector("sendgrid", history)}
}

func (c *SendGridConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	key, err := credentialString(c.id, credentials, "apiKey")
	if err != nil {
		return err
	}

	return c.probe(ctx, key)
}

func (c *SendGridConnector) Test(ctx context.Context, conn *models.Connection) bool {
	key, ok := conn.Credential("apiKey")
	if !ok {
		return false
	}

	return c.probe(ctx, key) == nil
}

func (c *SendGridConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// API keys are revoked from the SendGrid dashboard.
	return true
}

func (c *SendGridConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		key, ok := conn.Credential("apiKey")
		if !ok {
			return models.FailResult("sendgrid connection missing apiKey")
		}

		switch req.Action {
		case "send-email":
			return c.sendEmail(ctx, key, req.Params)
		case "list-templates":
			return c.listTemplates(ctx, key)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *SendGridConnector) sendEmail(ctx context.Context, key string, params map[string]interface{}) *models.ActionResult {
	to, ok := stringParam(params, "to")
	if !ok {
		return models.FailResult("send-email requires a to param")
	}

	from, ok := stringParam(params, "from")
	if !ok {
		return models.FailResult("send-email requires a from param")
	}

	subject, ok := stringParam(params, "subject")
	if !ok {
		return models.FailResult("send-email requires a subject param")
	}

	body, _ := stringParam(params, "body")

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": from},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": body},
		},
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, sendgridAPIURL+"/mail/send", c.headers(key), payload)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusAccepted {
		return c.actionFailure("send-email", status, raw)
	}

	return models.OKResult(map[string]interface{}{"accepted": true})
}

func (c *SendGridConnector) listTemplates(ctx context.Context, key string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, sendgridAPIURL+"/templates?generations=dynamic", c.headers(key), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-templates", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *SendGridConnector) probe(ctx context.Context, key string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, sendgridAPIURL+"/scopes", c.headers(key), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *SendGridConnector) headers(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}
