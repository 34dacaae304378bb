package cryptomus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_KnownVector(t *testing.T) {
	body := []byte(`{"order_id":"3fa85f64-5717-4562-b3fc-2c963f66afa6","status":"paid","amount":"25.00","currency":"USDT"}`)
	assert.Equal(t, "95308b48180a5451f602c58055987d21", Sign(body, "testPaymentKey"))
}

func TestSign_KeyAndBodySensitive(t *testing.T) {
	body := []byte(`{"order_id":"abc"}`)
	base := Sign(body, "key-one")
	assert.NotEqual(t, base, Sign(body, "key-two"))
	assert.NotEqual(t, base, Sign([]byte(`{"order_id":"abd"}`), "key-one"))
}

func TestClient_CreateInvoice(t *testing.T) {
	var gotSign, gotMerchant string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment", r.URL.Path)
		gotSign = r.Header.Get("sign")
		gotMerchant = r.Header.Get("merchant")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(createInvoiceResponse{
			State: 0,
			Result: &Invoice{
				UUID:    "8b03432e-385b-4670-8d06-064591096795",
				OrderID: "order-1",
				URL:     "https://pay.cryptomus.com/pay/8b03432e",
				Status:  "check",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "merchant-1", "paykey", "https://example.com/api/webhooks/cryptomus")

	invoice, err := client.CreateInvoice(context.Background(), decimal.RequireFromString("25.00"), "USDT", "order-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.cryptomus.com/pay/8b03432e", invoice.URL)

	assert.Equal(t, "merchant-1", gotMerchant)
	assert.Equal(t, Sign(gotBody, "paykey"), gotSign)

	var sent createInvoiceRequest
	require.NoError(t, json.Unmarshal(gotBody, &sent))
	assert.Equal(t, "25", sent.Amount)
	assert.Equal(t, "order-1", sent.OrderID)
	assert.Equal(t, "https://example.com/api/webhooks/cryptomus", sent.URLBack)
}

func TestClient_CreateInvoice_RejectedState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"state": 1, "errors": map[string]any{"amount": "too small"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "merchant-1", "paykey", "")

	_, err := client.CreateInvoice(context.Background(), decimal.NewFromInt(1), "USDT", "order-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state=1")
}
