package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const discordAPIURL = "https://discord.com/api/v10"

// DiscordConnector talks to the Discord REST API with a bot token.
type DiscordConnector struct {
	baseConnector
}

func NewDiscordConnector(history HistoryReader) *DiscordConnector {
	return &DiscordConnector{baseConnector: newBaseConnector("discord", history)}
}

func (c *DiscordConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "botToken")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *DiscordConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("botToken")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *DiscordConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Discord has no bot-token revoke endpoint; the token is simply
	// dropped locally.
	return true
}

func (c *DiscordConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("botToken")
		if !ok {
			return models.FailResult("discord connection missing botToken")
		}

		switch req.Action {
		case "send-message":
			return c.sendMessage(ctx, token, req.Params)
		case "list-guilds":
			return c.listGuilds(ctx, token)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *DiscordConnector) sendMessage(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	channelID, ok := stringParam(params, "channelId")
	if !ok {
		return models.FailResult("send-message requires a channelId param")
	}

	content, ok := stringParam(params, "content")
	if !ok {
		return models.FailResult("send-message requires a content param")
	}

	url := fmt.Sprintf("%s/channels/%s/messages", discordAPIURL, channelID)

	status, raw, err := c.doJSON(ctx, http.MethodPost, url, c.headers(token), map[string]interface{}{"content": content})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK && status != http.StatusCreated {
		return c.actionFailure("send-message", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *DiscordConnector) listGuilds(ctx context.Context, token string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, discordAPIURL+"/users/@me/guilds", c.headers(token), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-guilds", status, raw)
	}

	var guilds []interface{}
	if err := json.Unmarshal(raw, &guilds); err != nil {
		return models.FailResult(fmt.Sprintf("discord list-guilds: failed to parse response: %v", err))
	}

	return models.OKResult(guilds)
}

func (c *DiscordConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, discordAPIURL+"/users/@me", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *DiscordConnector) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bot " + token}
}
