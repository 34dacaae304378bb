package coinbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const apiVersion = "2018-03-22"

// Charge is the subset of a Coinbase Commerce charge the backend uses.
type Charge struct {
	Code      string `json:"code"`
	HostedURL string `json:"hosted_url"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type createChargeRequest struct {
	Name        string            `json:"name"`
	PricingType string            `json:"pricing_type"`
	LocalPrice  localPrice        `json:"local_price"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type localPrice struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type createChargeResponse struct {
	Data *Charge `json:"data"`
}

// CreateCharge opens a fixed-price USDT charge and returns its hosted page.
func (c *Client) CreateCharge(ctx context.Context, name string, amount decimal.Decimal, metadata map[string]string) (*Charge, error) {
	body, err := json.Marshal(createChargeRequest{
		Name:        name,
		PricingType: "fixed_price",
		LocalPrice:  localPrice{Amount: amount.String(), Currency: "USDT"},
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CC-Api-Key", c.apiKey)
	req.Header.Set("X-CC-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinbase request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinbase status %d: %s", resp.StatusCode, respBody)
	}

	var parsed createChargeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("coinbase response: %w", err)
	}
	if parsed.Data == nil {
		return nil, fmt.Errorf("coinbase response missing charge data")
	}
	return parsed.Data, nil
}
