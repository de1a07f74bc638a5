package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vaultlink/connector-core/internal/models"
)

const githubAPIURL = "https://api.github.com"

// GitHubConnector talks to the GitHub REST API with a personal access
// token.
type GitHubConnector struct {
	baseConnector
}

func NewGitHubConnector(history HistoryReader) *GitHubConnector {
	return &GitHubConnector{baseConnector: newBaseConnector("github", history)}
}

func (c *GitHubConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "token")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *GitHubConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("token")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *GitHubConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Personal access tokens are revoked from GitHub settings.
	return true
}

func (c *GitHubConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("token")
		if !ok {
			return models.FailResult("github connection missing token")
		}

		switch req.Action {
		case "create-issue":
			return c.createIssue(ctx, token, req.Params)
		case "list-repos":
			return c.listRepos(ctx, token)
		case "search-code":
			return c.searchCode(ctx, token, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *GitHubConnector) createIssue(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	repo, ok := stringParam(params, "repo")
	if !ok || !strings.Contains(repo, "/") {
		return models.FailResult("create-issue requires a repo param in owner/name form")
	}

	title, ok := stringParam(params, "title")
	if !ok {
		return models.FailResult("create-issue requires a title param")
	}

	body, _ := stringParam(params, "body")

	payload := map[string]interface{}{
		"title": title,
		"body":  body,
	}

	endpoint := fmt.Sprintf("%s/repos/%s/issues", githubAPIURL, repo)

	status, raw, err := c.doJSON(ctx, http.MethodPost, endpoint, c.headers(token), payload)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusCreated {
		return c.actionFailure("create-issue", status, raw)
	}

	issue := decodeJSON(raw)

	return models.OKResult(map[string]interface{}{
		"number":  issue["number"],
		"htmlUrl": issue["html_url"],
	})
}

func (c *GitHubConnector) listRepos(ctx context.Context, token string) *models.ActionResult {
	status, raw, err := c.doJSON(ctx, http.MethodGet, githubAPIURL+"/user/repos?per_page=50&sort=updated", c.headers(token), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-repos", status, raw)
	}

	var repos []interface{}
	if err := json.Unmarshal(raw, &repos); err != nil {
		return models.FailResult(fmt.Sprintf("github list-repos: failed to parse response: %v", err))
	}

	return models.OKResult(repos)
}

func (c *GitHubConnector) searchCode(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	query, ok := stringParam(params, "query")
	if !ok {
		return models.FailResult("search-code requires a query param")
	}

	endpoint := githubAPIURL + "/search/code?q=" + url.QueryEscape(query)

	status, raw, err := c.doJSON(ctx, http.MethodGet, endpoint, c.headers(token), nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("search-code", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *GitHubConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodGet, githubAPIURL+"/user", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *GitHubConnector) headers(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/vnd.github+json",
	}
}
