package connector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vaultlink/connector-core/internal/models"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"
const googleRevokeURL = "https://oauth2.googleapis.com/revoke"

// CredentialRefresher is implemented by connectors whose credentials can
// be renewed without user interaction.
type CredentialRefresher interface {
	RefreshCredentials(ctx context.Context, conn *models.Connection) (models.JSONB, error)
}

// GmailConnector talks to the Gmail API with a per-user OAuth access
// token. The client id/secret pair is only needed for token refresh.
type GmailConnector struct {
	baseConnector
	clientID     string
	clientSecret string
}

func NewGmailConnector(clientID, clientSecret string, history HistoryReader) *GmailConnector {
	return &GmailConnector{
		baseConnector: newBaseConnector("gmail", history),
		clientID:      clientID,
		clientSecret:  clientSecret,
	}
}

func (c *GmailConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	token, err := credentialString(c.id, credentials, "accessToken")
	if err != nil {
		return err
	}

	return c.probe(ctx, token)
}

func (c *GmailConnector) Test(ctx context.Context, conn *models.Connection) bool {
	token, ok := conn.Credential("accessToken")
	if !ok {
		return false
	}

	return c.probe(ctx, token) == nil
}

func (c *GmailConnector) Disconnect(ctx context.Context, conn *models.Connection) bool {
	// Best-effort Google token revocation.
	if token, ok := conn.Credential("accessToken"); ok {
		revoke := googleRevokeURL + "?token=" + url.QueryEscape(token)
		_, _, _ = c.doJSON(ctx, http.MethodPost, revoke, nil, nil)
	}

	return true
}

func (c *GmailConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		token, ok := conn.Credential("accessToken")
		if !ok {
			return models.FailResult("gmail connection missing accessToken")
		}

		svc, err := c.service(ctx, token)
		if err != nil {
			return models.FailResult(err.Error())
		}

		switch req.Action {
		case "send-email":
			return c.sendEmail(svc, req.Params)
		case "search-messages":
			return c.searchMessages(svc, req.Params)
		case "get-message":
			return c.getMessage(svc, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

// RefreshCredentials exchanges the stored refresh token for a new access
// token and returns the updated credential bag. Google may rotate the
// refresh token, so the returned bag always carries one.
func (c *GmailConnector) RefreshCredentials(ctx context.Context, conn *models.Connection) (models.JSONB, error) {
	refreshToken, ok := conn.Credential("refreshToken")
	if !ok {
		return nil, &ConfigError{Platform: c.id, Message: "connection has no refreshToken"}
	}

	config := &oauth2.Config{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: googleTokenURL,
		},
	}

	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	newToken, err := source.Token()
	if err != nil {
		return nil, c.mapAPIError(err)
	}

	refreshed := models.JSONB{
		"accessToken": newToken.AccessToken,
		"expiresAt":   newToken.Expiry.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}

	if newToken.RefreshToken != "" {
		refreshed["refreshToken"] = newToken.RefreshToken
	} else {
		refreshed["refreshToken"] = refreshToken
	}

	return refreshed, nil
}

func (c *GmailConnector) sendEmail(svc *gmail.Service, params map[string]interface{}) *models.ActionResult {
	to, ok := stringParam(params, "to")
	if !ok {
		return models.FailResult("send-email requires a to param")
	}

	subject, ok := stringParam(params, "subject")
	if !ok {
		return models.FailResult("send-email requires a subject param")
	}

	body, _ := stringParam(params, "body")

	var msg strings.Builder
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	sent, err := svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(msg.String())),
	}).Do()
	if err != nil {
		return models.FailResult(c.mapAPIError(err).Error())
	}

	return models.OKResult(map[string]interface{}{
		"id":       sent.Id,
		"threadId": sent.ThreadId,
	})
}

func (c *GmailConnector) searchMessages(svc *gmail.Service, params map[string]interface{}) *models.ActionResult {
	query, ok := stringParam(params, "query")
	if !ok {
		return models.FailResult("search-messages requires a query param")
	}

	resp, err := svc.Users.Messages.List("me").Q(query).MaxResults(25).Do()
	if err != nil {
		return models.FailResult(c.mapAPIError(err).Error())
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}

	return models.OKResult(map[string]interface{}{
		"messageIds":    ids,
		"nextPageToken": resp.NextPageToken,
	})
}

func (c *GmailConnector) getMessage(svc *gmail.Service, params map[string]interface{}) *models.ActionResult {
	messageID, ok := stringParam(params, "messageId")
	if !ok {
		return models.FailResult("get-message requires a messageId param")
	}

	msg, err := svc.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return models.FailResult(c.mapAPIError(err).Error())
	}

	headers := map[string]interface{}{}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			headers[h.Name] = h.Value
		}
	}

	return models.OKResult(map[string]interface{}{
		"id":       msg.Id,
		"threadId": msg.ThreadId,
		"snippet":  msg.Snippet,
		"labels":   msg.LabelIds,
		"headers":  headers,
	})
}

// probe is a read-only profile fetch.
func (c *GmailConnector) probe(ctx context.Context, accessToken string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	if _, err := svc.Users.GetProfile("me").Do(); err != nil {
		return c.mapAPIError(err)
	}

	return nil
}

func (c *GmailConnector) service(ctx context.Context, accessToken string) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return svc, nil
}

// mapAPIError converts googleapi errors into the taxonomy.
func (c *GmailConnector) mapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return &AuthError{Platform: c.id, Message: fmt.Sprintf("credential rejected (status %d)", apiErr.Code)}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			return &TransientError{Platform: c.id, Message: fmt.Sprintf("remote unavailable (status %d)", apiErr.Code)}
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && (retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return &AuthError{Platform: c.id, Message: "refresh token rejected"}
		}
	}

	return &TransientError{Platform: c.id, Message: "request failed", Err: err}
}
