package connector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vaultlink/connector-core/internal/models"
)

const (
	notionAPIURL  = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// NotionConnector talks to the Notion API with an integration token.
type NotionConnector struct {
	baseConnector
}

func NewNotionConnector(history HistoryReader) *NotionConnector {
	return &NotionConnector{baseConnector: newBaseConnector("notion", history)}
}

func (c *NotionConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "token")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *NotionConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("token")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *NotionConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Integration tokens are revoked from the Notion workspace settings.
	return true
}

func (c *NotionConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("token")
		if !ok {
			return models.FailResult("notion connection missing token")
		}

		switch req.Action {
		case "search":
			return c.search(ctx, token, req.Params)
		case "create-page":
			return c.createPage(ctx, token, req.Params)
		case "query-database":
			return c.queryDatabase(ctx, token, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *NotionConnector) search(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	query, _ := stringParam(params, "query")

	status, raw, err := c.doJSON(ctx, http.MethodPost, notionAPIURL+"/search", c.headers(token), map[string]interface{}{"query": query})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("search", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *NotionConnector) createPage(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	parentID, ok := stringParam(params, "parentPageId")
	if !ok {
		return models.FailResult("create-page requires a parentPageId param")
	}

	title, ok := stringParam(params, "title")
	if !ok {
		return models.FailResult("create-page requires a title param")
	}

	payload := map[string]interface{}{
		"parent": map[string]interface{}{"page_id": parentID},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"title": []map[string]interface{}{
					{"text": map[string]interface{}{"content": title}},
				},
			},
		},
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, notionAPIURL+"/pages", c.headers(token), payload)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("create-page", status, raw)
	}

	page := decodeJSON(raw)

	return models.OKResult(map[string]interface{}{
		"id":  page["id"],
		"url": page["url"],
	})
}

func (c *NotionConnector) queryDatabase(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	databaseID, ok := stringParam(params, "databaseId")
	if !ok {
		return models.FailResult("query-database requires a databaseId param")
	}

	endpoint := fmt.Sprintf("%s/databases/%s/query", notionAPIURL, databaseID)

	status, raw, err := c.doJSON(ctx, http.MethodPost, endpoint, c.headers(token), map[string]interface{}{})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("query-database", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *NotionConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, notionAPIURL+"/users/me", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *NotionConnector) headers(token string) map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + token,
		"Notion-Version": notionVersion,
	}
}
