// Package stripe is a minimal client for the payment gateway's
// payment-intent API and webhook signature scheme. Only the operations the
// checkout flow needs are implemented.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PaymentIntent mirrors the gateway's intent object, trimmed to the fields
// the checkout flow reads.
type PaymentIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
	Shipping     *Shipping         `json:"shipping"`
	LastError    *IntentError      `json:"last_payment_error"`
}

// StatusSucceeded is the only intent status that permits order creation.
const StatusSucceeded = "succeeded"

// Shipping carries the payer's delivery details as stored on the intent.
type Shipping struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IntentError is the gateway's error detail on a failed payment attempt.
type IntentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error (HTTP %d, %s): %s", e.StatusCode, e.Type, e.Message)
}

// Config holds gateway connection details.
type Config struct {
	APIKey  string
	BaseURL string
	// HTTPClient optionally overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the gateway's REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new gateway client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com"
	}
	return &Client{apiKey: cfg.APIKey, baseURL: baseURL, http: httpClient}
}

// IntentParams are the mutable fields of an intent. Nil/empty fields are
// left untouched on modify.
type IntentParams struct {
	Amount       int64
	Currency     string
	Metadata     map[string]string
	Shipping     *Shipping
	ReceiptEmail string
}

func (p *IntentParams) encode() url.Values {
	form := url.Values{}
	if p.Amount > 0 {
		form.Set("amount", strconv.FormatInt(p.Amount, 10))
	}
	if p.Currency != "" {
		form.Set("currency", p.Currency)
	}
	if p.ReceiptEmail != "" {
		form.Set("receipt_email", p.ReceiptEmail)
	}
	for k, v := range p.Metadata {
		form.Set("metadata["+k+"]", v)
	}
	if p.Shipping != nil {
		form.Set("shipping[name]", p.Shipping.Name)
		form.Set("shipping[phone]", p.Shipping.Phone)
		form.Set("shipping[address][line1]", p.Shipping.Address.Line1)
		form.Set("shipping[address][line2]", p.Shipping.Address.Line2)
		form.Set("shipping[address][city]", p.Shipping.Address.City)
		form.Set("shipping[address][postal_code]", p.Shipping.Address.PostalCode)
		form.Set("shipping[address][country]", p.Shipping.Address.Country)
	}
	return form
}

// CreateIntent creates a payment intent for the given amount in minor
// units (integer cents).
func (c *Client) CreateIntent(ctx context.Context, params IntentParams) (*PaymentIntent, error) {
	form := params.encode()
	form.Set("automatic_payment_methods[enabled]", "true")
	return c.doIntent(ctx, http.MethodPost, "/v1/payment_intents", form)
}

// RetrieveIntent fetches the current state of an intent, including the
// metadata snapshot stored on it.
func (c *Client) RetrieveIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	return c.doIntent(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil)
}

// ModifyIntent updates an existing intent's amount, metadata or shipping.
func (c *Client) ModifyIntent(ctx context.Context, id string, params IntentParams) (*PaymentIntent, error) {
	return c.doIntent(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id), params.encode())
}

func (c *Client) doIntent(ctx context.Context, method, path string, form url.Values) (*PaymentIntent, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if jsonErr := json.Unmarshal(data, &wrapper); jsonErr == nil && wrapper.Error != nil {
			apiErr.Type = wrapper.Error.Type
			apiErr.Message = wrapper.Error.Message
		}
		return nil, apiErr
	}

	var intent PaymentIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	return &intent, nil
}
