package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const openRouterAPIURL = "https://openrouter.ai/api/v1"

// OpenRouterConnector talks to the OpenRouter chat-completions API with
// an API key.
type OpenRouterConnector struct {
	baseConnector
}

func NewOpenRouterConnector(history HistoryReader) *OpenRouterConnector {
	return &OpenRouterConnector{baseConnector: newBaseConnector("openrouter", history)}
}

func (c *OpenRouterConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	key, err := credentialString(c.id, credentials, "apiKey")
	if err != nil {
		return err
	}

	return c.probe(ctx, key)
}

func (c *OpenRouterConnector) Test(ctx context.Context, conn *models.Connection) bool {
	key, ok := conn.Credential("apiKey")
	if !ok {
		return false
	}

	return c.probe(ctx, key) == nil
}

func (c *OpenRouterConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Keys are revoked from the OpenRouter dashboard.
	return true
}

func (c *OpenRouterConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		key, ok := conn.Credential("apiKey")
		if !ok {
			return models.FailResult("openrouter connection missing apiKey")
		}

		switch req.Action {
		case "chat-completion":
			return c.chatCompletion(ctx, key, req.Params)
		case "list-models":
			return c.listModels(ctx, key)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *OpenRouterConnector) chatCompletion(ctx context.Context, key string, params map[string]interface{}) *models.ActionResult {
	prompt, ok := stringParam(params, "prompt")
	if !ok {
		return models.FailResult("chat-completion requires a prompt param")
	}

	payload := map[string]interface{}{
		"messages": []map[string]interface{}{
			{"role": "user", "content": prompt},
		},
	}

	// Only include model if explicitly set, otherwise the OpenRouter
	// account default applies.
	if model, ok := stringParam(params, "model"); ok {
		payload["model"] = model
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, openRouterAPIURL+"/chat/completions", c.headers(key), payload)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("chat-completion", status, raw)
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(raw, &resp); err != nil {
		return models.FailResult(fmt.Sprintf("openrouter: failed to parse response: %v", err))
	}

	if len(resp.Choices) == 0 {
		return models.FailResult("openrouter: no response from model")
	}

	return models.OKResult(map[string]interface{}{
		"content": resp.Choices[0].Message.Content,
	})
}

func (c *OpenRouterConnector) listModels(ctx context.Context, key string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, openRouterAPIURL+"/models", c.headers(key), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-models", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *OpenRouterConnector) probe(ctx context.Context, key string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, openRouterAPIURL+"/models", c.headers(key), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *OpenRouterConnector) headers(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}
