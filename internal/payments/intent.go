// Package payments creates payment intents against the hosted processor
// and exposes the HTTP endpoint the checkout widget calls.
package payments

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

// IntentCreator requests a payment intent and returns the client secret
// the hosted confirmation widget consumes.
type IntentCreator interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (string, error)
}

// StripeClient is a thin call-through to the processor's REST API.
type StripeClient struct {
	SecretKey  string
	BaseURL    string
	HttpClient *http.Client
}

var _ IntentCreator = (*StripeClient)(nil)

func NewStripeClient(secretKey string) *StripeClient {
	return &StripeClient{
		SecretKey:  secretKey,
		BaseURL:    "https://api.stripe.com",
		HttpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *StripeClient) CreateIntent(ctx context.Context, amount int64, currency string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("payment provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var out struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode payment intent response: %w", err)
	}
	if out.ClientSecret == "" {
		return "", fmt.Errorf("payment intent response missing client secret")
	}
	return out.ClientSecret, nil
}
