package connector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/vaultlink/connector-core/internal/models"
)

const (
	dropboxAPIURL     = "https://api.dropboxapi.com/2"
	dropboxContentURL = "https://content.dropboxapi.com/2"
)

// DropboxConnector talks to the Dropbox API with a per-user OAuth
// access token. File content goes through the content endpoint with the
// API arguments in a header.
type DropboxConnector struct {
	baseConnector
}

func NewDropboxConnector(history HistoryReader) *DropboxConnector {
	return &DropboxConnector{baseConnector: newBaseConnector("dropbox", history)}
}

func (c *DropboxConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "accessToken")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *DropboxConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("accessToken")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *DropboxConnector) Disconnect(ctx context.Context, conn *models.Connection) bool {
	// Best-effort token revoke.
	if token, ok := conn.Credential("accessToken"); ok {
		_, _, _ = c.doJSON(ctx, http.MethodPost, dropboxAPIURL+"/auth/token/revoke", c.headers(token), nil)
	}

	return true
}

func (c *DropboxConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("accessToken")
		if !ok {
			return models.FailResult("dropbox connection missing accessToken")
		}

		switch req.Action {
		case "list-folder":
			return c.listFolder(ctx, token, req.Params)
		case "search-files":
			return c.searchFiles(ctx, token, req.Params)
		case "upload-file":
			return c.uploadFile(ctx, token, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *DropboxConnector) listFolder(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	path, _ := stringParam(params, "path") // "" means the root folder

	status, raw, err := c.doJSON(ctx, http.MethodPost, dropboxAPIURL+"/files/list_folder", c.headers(token), map[string]interface{}{"path": path})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-folder", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *DropboxConnector) searchFiles(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	query, ok := stringParam(params, "query")
	if !ok {
		return models.FailResult("search-files requires a query param")
	}

	status, raw, err := c.doJSON(ctx, http.MethodPost, dropboxAPIURL+"/files/search_v2", c.headers(token), map[string]interface{}{"query": query})
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("search-files", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *DropboxConnector) uploadFile(ctx context.Context, token string, params map[string]interface{}) *models.ActionResult {
	path, ok := stringParam(params, "path")
	if !ok || !strings.HasPrefix(path, "/") {
		return models.FailResult("upload-file requires a path param starting with /")
	}

	content, ok := stringParam(params, "content")
	if !ok {
		return models.FailResult("upload-file requires a content param")
	}

	arg, err := json.Marshal(map[string]interface{}{
		"path": path,
		"mode": "overwrite",
	})
	if err != nil {
		return models.FailResult(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dropboxContentURL+"/files/upload", strings.NewReader(content))
	if err != nil {
		return models.FailResult(err.Error())
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.FailResult((&TransientError{Platform: c.id, Message: "request failed", Err: err}).Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		return c.actionFailure("upload-file", resp.StatusCode, raw)
	}

	uploaded := decodeJSON(raw)

	return models.OKResult(map[string]interface{}{
		"path": uploaded["path_display"],
		"rev":  uploaded["rev"],
		"size": uploaded["size"],
	})
}

func (c *DropboxConnector) probe(ctx context.Context, token string) error {
	status, raw, err := c.doJSON(ctx, http.MethodPost, dropboxAPIURL+"/users/get_current_account", c.headers(token), nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

func (c *DropboxConnector) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
