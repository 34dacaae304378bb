package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cardmodels "cardtool-backend/internal/features/card/models"
)

const testStripeSecret = "whsec_test_4d73b8f0e2"

type recordCall struct {
	cardID string
	amount decimal.Decimal
	txID   string
}

type fakeCardService struct {
	authorizeCalls int
	authorized     bool
	reason         string
	recordCalls    []recordCall
	recordErr      error
}

func (f *fakeCardService) Purchase(context.Context, int64) (*cardmodels.Card, error) {
	return nil, nil
}

func (f *fakeCardService) Details(context.Context, int64) (*cardmodels.Details, error) {
	return nil, nil
}

func (f *fakeCardService) SetStatus(context.Context, int64, string) (*cardmodels.Card, error) {
	return nil, nil
}

func (f *fakeCardService) List(context.Context, int64) ([]*cardmodels.Card, error) {
	return nil, nil
}

func (f *fakeCardService) AuthorizeSpend(_ context.Context, _ string, _ decimal.Decimal) (bool, string, error) {
	f.authorizeCalls++
	return f.authorized, f.reason, nil
}

func (f *fakeCardService) RecordSpend(_ context.Context, cardID string, amount decimal.Decimal, txID string) error {
	f.recordCalls = append(f.recordCalls, recordCall{cardID: cardID, amount: amount, txID: txID})
	return f.recordErr
}

type fakeEventStore struct {
	seen map[string]bool
}

func (f *fakeEventStore) InsertEvent(_ context.Context, provider, eventID string) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := provider + ":" + eventID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeEventStore) DeleteEvent(_ context.Context, provider, eventID string) error {
	delete(f.seen, provider+":"+eventID)
	return nil
}

// stripeSignature builds a Stripe-Signature header the SDK accepts.
func stripeSignature(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(id, eventType string, object any) []byte {
	raw, _ := json.Marshal(object)
	payload, _ := json.Marshal(map[string]any{
		"id":     id,
		"object": "event",
		"type":   eventType,
		"data":   map[string]json.RawMessage{"object": raw},
	})
	return payload
}

func stripeRouter(cards *fakeCardService, events *fakeEventStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewStripeHandler(testStripeSecret, cards, events).RegisterRoutes(r.Group("/api"))
	return r
}

func postStripe(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStripeWebhook_BadSignatureRejectedBeforeBusinessLogic(t *testing.T) {
	cards := &fakeCardService{authorized: true}
	router := stripeRouter(cards, &fakeEventStore{})

	payload := stripeEvent("evt_1", "issuing_authorization.request", map[string]any{"id": "iauth_1"})

	w := postStripe(router, payload, "t=123,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A signature over different bytes must fail too.
	w = postStripe(router, payload, stripeSignature([]byte(`{}`), testStripeSecret, time.Now()))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, cards.authorizeCalls)
	assert.Empty(t, cards.recordCalls)
}

func TestStripeWebhook_AuthorizationDeclineCarriesReason(t *testing.T) {
	cards := &fakeCardService{authorized: false, reason: "card_inactive_or_missing"}
	router := stripeRouter(cards, &fakeEventStore{})

	payload := stripeEvent("evt_2", "issuing_authorization.request", map[string]any{
		"id":              "iauth_1",
		"amount":          500,
		"card":            map[string]any{"id": "ic_1"},
		"pending_request": map[string]any{"amount": 500},
	})

	w := postStripe(router, payload, stripeSignature(payload, testStripeSecret, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Approved bool `json:"approved"`
		Metadata struct {
			Reason string `json:"reason"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Approved)
	assert.Equal(t, "card_inactive_or_missing", resp.Metadata.Reason)
	assert.Equal(t, 1, cards.authorizeCalls)
}

func TestStripeWebhook_AuthorizationApproved(t *testing.T) {
	cards := &fakeCardService{authorized: true}
	router := stripeRouter(cards, &fakeEventStore{})

	payload := stripeEvent("evt_3", "issuing_authorization.request", map[string]any{
		"id":              "iauth_2",
		"card":            map[string]any{"id": "ic_1"},
		"pending_request": map[string]any{"amount": 1250},
	})

	w := postStripe(router, payload, stripeSignature(payload, testStripeSecret, time.Now()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"approved":true`)
}

func TestStripeWebhook_DuplicateCaptureBooksOnce(t *testing.T) {
	cards := &fakeCardService{}
	router := stripeRouter(cards, &fakeEventStore{})

	payload := stripeEvent("evt_4", "issuing_transaction.created", map[string]any{
		"id":     "ipi_1",
		"amount": -750,
		"card":   map[string]any{"id": "ic_1"},
	})
	signature := stripeSignature(payload, testStripeSecret, time.Now())

	w := postStripe(router, payload, signature)
	require.Equal(t, http.StatusOK, w.Code)

	w = postStripe(router, payload, signature)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	require.Len(t, cards.recordCalls, 1)
	assert.Equal(t, "ic_1", cards.recordCalls[0].cardID)
	assert.Equal(t, "ipi_1", cards.recordCalls[0].txID)
	assert.True(t, decimal.RequireFromString("7.5").Equal(cards.recordCalls[0].amount))
}

func TestStripeWebhook_CaptureRetriedAfterLedgerFailure(t *testing.T) {
	cards := &fakeCardService{recordErr: errors.New("rpc timeout")}
	events := &fakeEventStore{}
	router := stripeRouter(cards, events)

	payload := stripeEvent("evt_6", "issuing_transaction.created", map[string]any{
		"id":     "ipi_2",
		"amount": -300,
		"card":   map[string]any{"id": "ic_1"},
	})
	signature := stripeSignature(payload, testStripeSecret, time.Now())

	w := postStripe(router, payload, signature)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	// The dedup row was released, so the redelivery is not a duplicate.
	assert.Empty(t, events.seen)

	cards.recordErr = nil
	w = postStripe(router, payload, signature)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "duplicate")

	require.Len(t, cards.recordCalls, 2)
	assert.Equal(t, "ipi_2", cards.recordCalls[1].txID)
	assert.Len(t, events.seen, 1)
}

func TestStripeWebhook_UnhandledTypeAcknowledged(t *testing.T) {
	cards := &fakeCardService{}
	router := stripeRouter(cards, &fakeEventStore{})

	payload := stripeEvent("evt_5", "charge.succeeded", map[string]any{"id": "ch_1"})

	w := postStripe(router, payload, stripeSignature(payload, testStripeSecret, time.Now()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, cards.authorizeCalls)
	assert.Empty(t, cards.recordCalls)
}
