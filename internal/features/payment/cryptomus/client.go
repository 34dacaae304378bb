package cryptomus

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sign computes the Cryptomus request/webhook signature:
// MD5 over the base64 of the raw body concatenated with the payment key.
func Sign(body []byte, paymentKey string) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + paymentKey))
	return hex.EncodeToString(sum[:])
}

// Invoice is the subset of the payment response the backend cares about.
type Invoice struct {
	UUID    string `json:"uuid"`
	OrderID string `json:"order_id"`
	URL     string `json:"url"`
	Status  string `json:"status"`
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	merchantID  string
	paymentKey  string
	callbackURL string
}

func NewClient(baseURL, merchantID, paymentKey, callbackURL string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		merchantID:  merchantID,
		paymentKey:  paymentKey,
		callbackURL: callbackURL,
	}
}

type createInvoiceRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	URLBack  string `json:"url_callback,omitempty"`
}

type createInvoiceResponse struct {
	State  int      `json:"state"`
	Result *Invoice `json:"result"`
	Errors any      `json:"errors,omitempty"`
}

// CreateInvoice asks Cryptomus for a hosted payment page. The order id must be
// unique per topup; the webhook references it to complete the topup later.
func (c *Client) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, orderID string) (*Invoice, error) {
	body, err := json.Marshal(createInvoiceRequest{
		Amount:   amount.String(),
		Currency: currency,
		OrderID:  orderID,
		URLBack:  c.callbackURL,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant", c.merchantID)
	req.Header.Set("sign", Sign(body, c.paymentKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cryptomus request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cryptomus status %d: %s", resp.StatusCode, respBody)
	}

	var parsed createInvoiceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("cryptomus response: %w", err)
	}
	if parsed.State != 0 || parsed.Result == nil {
		return nil, fmt.Errorf("cryptomus rejected invoice: state=%d errors=%v", parsed.State, parsed.Errors)
	}
	return parsed.Result, nil
}
