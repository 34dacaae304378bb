package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSumsubSecret = "sumsub-webhook-secret"

type reviewCall struct {
	telegramID int64
	approved   bool
}

type fakeKYCService struct {
	reviews []reviewCall
}

func (f *fakeKYCService) AccessToken(context.Context, int64) (string, error) {
	return "", nil
}

func (f *fakeKYCService) ApplyReview(_ context.Context, telegramID int64, approved bool, _ time.Time) error {
	f.reviews = append(f.reviews, reviewCall{telegramID: telegramID, approved: approved})
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func sumsubDigest(body, secret, alg string) string {
	switch alg {
	case "HMAC_SHA256_HEX":
		m := hmac.New(sha256.New, []byte(secret))
		m.Write([]byte(body))
		return hex.EncodeToString(m.Sum(nil))
	case "HMAC_SHA512_HEX":
		m := hmac.New(sha512.New, []byte(secret))
		m.Write([]byte(body))
		return hex.EncodeToString(m.Sum(nil))
	}
	return ""
}

func sumsubRouter(kyc *fakeKYCService, events *fakeEventStore, notifier *fakeNotifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewSumsubHandler(testSumsubSecret, kyc, events, notifier).RegisterRoutes(r.Group("/api"))
	return r
}

func postSumsub(router *gin.Engine, body, alg, digest string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/sumsub", strings.NewReader(body))
	req.Header.Set("X-Payload-Digest-Alg", alg)
	req.Header.Set("X-Payload-Digest", digest)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const greenReview = `{"type":"applicantReviewed","externalUserId":"279058397","reviewResult":{"reviewAnswer":"GREEN"}}`

func TestSumsubWebhook_GreenReviewApprovesAndNotifies(t *testing.T) {
	kyc := &fakeKYCService{}
	notifier := &fakeNotifier{}
	router := sumsubRouter(kyc, &fakeEventStore{}, notifier)

	w := postSumsub(router, greenReview, "HMAC_SHA256_HEX", sumsubDigest(greenReview, testSumsubSecret, "HMAC_SHA256_HEX"))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, kyc.reviews, 1)
	assert.Equal(t, int64(279058397), kyc.reviews[0].telegramID)
	assert.True(t, kyc.reviews[0].approved)

	assert.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSumsubWebhook_RedReviewRejects(t *testing.T) {
	kyc := &fakeKYCService{}
	router := sumsubRouter(kyc, &fakeEventStore{}, &fakeNotifier{})

	body := strings.Replace(greenReview, "GREEN", "RED", 1)
	w := postSumsub(router, body, "HMAC_SHA256_HEX", sumsubDigest(body, testSumsubSecret, "HMAC_SHA256_HEX"))
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, kyc.reviews, 1)
	assert.False(t, kyc.reviews[0].approved)
}

func TestSumsubWebhook_AlgorithmSelection(t *testing.T) {
	kyc := &fakeKYCService{}
	router := sumsubRouter(kyc, &fakeEventStore{}, &fakeNotifier{})

	// SHA-512 digest accepted when the alg header says so.
	w := postSumsub(router, greenReview, "HMAC_SHA512_HEX", sumsubDigest(greenReview, testSumsubSecret, "HMAC_SHA512_HEX"))
	assert.Equal(t, http.StatusOK, w.Code)

	// The same digest under the wrong alg header must fail.
	w = postSumsub(router, greenReview, "HMAC_SHA256_HEX", sumsubDigest(greenReview, testSumsubSecret, "HMAC_SHA512_HEX"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown algorithm names are rejected outright.
	w = postSumsub(router, greenReview, "HMAC_MD5_HEX", sumsubDigest(greenReview, testSumsubSecret, "HMAC_SHA256_HEX"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Len(t, kyc.reviews, 1)
}

func TestSumsubWebhook_DuplicateDeliveryProcessedOnce(t *testing.T) {
	kyc := &fakeKYCService{}
	events := &fakeEventStore{}
	router := sumsubRouter(kyc, events, &fakeNotifier{})

	digest := sumsubDigest(greenReview, testSumsubSecret, "HMAC_SHA256_HEX")

	w := postSumsub(router, greenReview, "HMAC_SHA256_HEX", digest)
	require.Equal(t, http.StatusOK, w.Code)
	w = postSumsub(router, greenReview, "HMAC_SHA256_HEX", digest)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	assert.Len(t, kyc.reviews, 1)
	assert.Len(t, events.seen, 1)
}

func TestSumsubWebhook_OtherEventTypesAcknowledged(t *testing.T) {
	kyc := &fakeKYCService{}
	router := sumsubRouter(kyc, &fakeEventStore{}, &fakeNotifier{})

	body := `{"type":"applicantCreated","externalUserId":"279058397"}`
	w := postSumsub(router, body, "HMAC_SHA256_HEX", sumsubDigest(body, testSumsubSecret, "HMAC_SHA256_HEX"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, kyc.reviews)
}
