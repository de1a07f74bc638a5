package connector

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vaultlink/connector-core/internal/models"
)

const stripeAPIURL = "https://api.stripe.com/v1"

// StripeConnector talks to the Stripe API with a secret key. Stripe
// expects form-encoded bodies, not JSON.
type StripeConnector struct {
	baseConnector
}

func NewStripeConnector(history HistoryReader) *StripeConnector {
	return &StripeConnector{baseConnector: newBaseConnector("stripe", history)}
}

func (c *StripeConnector) Connect(ctx context.Context, credentials map[string]interface{}) error {
	key, err := credentialString(c.id, credentials, "apiKey")
	if err != nil {
		return err
	}

	return c.probe(ctx, key)
}

func (c *StripeConnector) Test(ctx context.Context, conn *models.Connection) bool {
	key, ok := conn.Credential("apiKey")
	if !ok {
		return false
	}

	return c.probe(ctx, key) == nil
}

func (c *StripeConnector) Disconnect(_ context.Context, _ *models.Connection) bool {
	// Secret keys are rolled from the Stripe dashboard.
	return true
}

func (c *StripeConnector) Execute(ctx context.Context, req *models.ActionRequest, active []*models.Connection) *models.ActionResult {
	return c.run(active, func(conn *models.Connection) *models.ActionResult {
		key, ok := conn.Credential("apiKey")
		if !ok {
			return models.FailResult("stripe connection missing apiKey")
		}

		switch req.Action {
		case "get-balance":
			return c.getBalance(ctx, key)
		case "list-charges":
			return c.listCharges(ctx, key)
		case "create-customer":
			return c.createCustomer(ctx, key, req.Params)
		default:
			return c.unknownAction(req.Action)
		}
	})
}

func (c *StripeConnector) getBalance(ctx context.Context, key string) *models.ActionResult {
	status, raw, err := c.doForm(ctx, http.MethodGet, stripeAPIURL+"/balance", key, nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("get-balance", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *StripeConnector) listCharges(ctx context.Context, key string) *models.ActionResult {
	status, raw, err := c.doForm(ctx, http.MethodGet, stripeAPIURL+"/charges?limit=25", key, nil)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("list-charges", status, raw)
	}

	return models.OKResult(decodeJSON(raw))
}

func (c *StripeConnector) createCustomer(ctx context.Context, key string, params map[string]interface{}) *models.ActionResult {
	email, ok := stringParam(params, "email")
	if !ok {
		return models.FailResult("create-customer requires an email param")
	}

	form := url.Values{}
	form.Set("email", email)

	if name, ok := stringParam(params, "name"); ok {
		form.Set("name", name)
	}

	status, raw, err := c.doForm(ctx, http.MethodPost, stripeAPIURL+"/customers", key, form)
	if err != nil {
		return models.FailResult(err.Error())
	}

	if status != http.StatusOK {
		return c.actionFailure("create-customer", status, raw)
	}

	customer := decodeJSON(raw)

	return models.OKResult(map[string]interface{}{
		"id":    customer["id"],
		"email": customer["email"],
	})
}

func (c *StripeConnector) probe(ctx context.Context, key string) error {
	status, raw, err := c.doForm(ctx, http.MethodGet, stripeAPIURL+"/balance", key, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return c.probeError(status, raw)
	}

	return nil
}

// doForm performs one bounded round-trip with an optional form-encoded
// body, reusing the shared client.
func (c *StripeConnector) doForm(ctx context.Context, method, endpoint, key string, form url.Values) (int, []byte, error) {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Authorization", "Bearer "+key)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &TransientError{Platform: c.id, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, &TransientError{Platform: c.id, Message: "failed to read response", Err: err}
	}

	return resp.StatusCode, raw, nil
}
