package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardtool-backend/internal/common/logger"
	kycservice "cardtool-backend/internal/features/kyc/service"
	"cardtool-backend/internal/features/webhook/repository"
)

// Notifier sends best-effort Telegram messages. Failures never fail the
// webhook.
type Notifier interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
}

type SumsubHandler struct {
	secret   string
	kyc      kycservice.KYCService
	events   repository.EventStore
	notifier Notifier
}

func NewSumsubHandler(secret string, kyc kycservice.KYCService, events repository.EventStore, notifier Notifier) *SumsubHandler {
	return &SumsubHandler{secret: secret, kyc: kyc, events: events, notifier: notifier}
}

func (h *SumsubHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/sumsub", h.handle)
}

func digestHash(alg string) func() hash.Hash {
	switch alg {
	case "HMAC_SHA1_HEX":
		return sha1.New
	case "HMAC_SHA256_HEX":
		return sha256.New
	case "HMAC_SHA512_HEX":
		return sha512.New
	default:
		return nil
	}
}

func (h *SumsubHandler) verify(raw []byte, alg, digest string) bool {
	newHash := digestHash(alg)
	if newHash == nil || digest == "" {
		return false
	}
	mac := hmac.New(newHash, []byte(h.secret))
	mac.Write(raw)
	want := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(digest)), []byte(want)) == 1
}

type sumsubPayload struct {
	Type           string `json:"type"`
	ExternalUserID string `json:"externalUserId"`
	ReviewResult   struct {
		ReviewAnswer string `json:"reviewAnswer"`
	} `json:"reviewResult"`
}

func (h *SumsubHandler) handle(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if !h.verify(raw, c.GetHeader("X-Payload-Digest-Alg"), c.GetHeader("X-Payload-Digest")) {
		logger.Warn().Msg("sumsub webhook digest rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	// The payload carries no event id; identical bytes are the identity.
	sum := sha256.Sum256(raw)
	fresh, err := h.events.InsertEvent(c.Request.Context(), "sumsub", hex.EncodeToString(sum[:]))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	if !fresh {
		c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
		return
	}

	var payload sumsubPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if payload.Type != "applicantReviewed" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	answer := payload.ReviewResult.ReviewAnswer
	if answer != "GREEN" && answer != "RED" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	telegramID, err := strconv.ParseInt(payload.ExternalUserID, 10, 64)
	if err != nil {
		logger.Warn().Str("external_user_id", payload.ExternalUserID).Msg("sumsub webhook with non-numeric user id")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	approved := answer == "GREEN"
	if err := h.kyc.ApplyReview(c.Request.Context(), telegramID, approved, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Int64("telegram_id", telegramID).Msg("applying review outcome failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	text := "Your identity verification was approved. You can now purchase a card."
	if !approved {
		text = "Your identity verification was rejected. Please contact support."
	}
	notifyCtx := context.WithoutCancel(c.Request.Context())
	go func() { _ = h.notifier.SendMessage(notifyCtx, telegramID, text) }()

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
