package connector

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vaultlink/connector-core/internal/models"
)

const twitterAPIURL = "https://api.twitter.com/2"

// TwitterConnector talks to the X (Twitter) v2 API with a user-context
// OAuth access token.
type TwitterConnector struct {
	baseConnector
}

func NewTwitterConnector(history HistoryReader) *TwitterConnector {
	return &TwitterConnector{baseConnector: newBaseConnector("twitter", history)}
}

func (c *TwitterConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "accessToken")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *TwitterConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("accessToken")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *TwitterConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Token revocation needs the app client id, which user-context
	// connections do not carry; the token is dropped locally.
	return true
}

func (c *TwitterConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("accessToken")
		if !ok {
			return models.FailResult("twitter connection missing accessToken")
		}

		switch req.Action {
		case "post-tweet":
			return c.postTweet(ctx, token, req.Params)
		case "search-tweets":
			return c.searchTweets(ctx, token, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *TwitterConnector) postTweet(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	text, ok := stringParam(params, "text")
	if !ok {
		return models.FailResult("post-tweet requires a text param")
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, twitterAPIURL+"/tweets", c.headers(token), map[string]interface{}{"text": text})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusCreated {
		return c.actionFailure("post-tweet", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *TwitterConnector) searchTweets(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	query, ok := stringParam(params, "query")
	if !ok {
		return models.FailResult("search-tweets requires a query param")
	}

	endpoint := twitterAPIURL + "/tweets/search/recent?query=" + url.QueryEscape(query)

	status, raw, err := c.doJSON(ctx, http.MethodGet, endpoint, c.headers(token), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("search-tweets", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *TwitterConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, twitterAPIURL+"/users/me", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *TwitterConnector) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
