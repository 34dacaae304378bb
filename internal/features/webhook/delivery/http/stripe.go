package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"cardtool-backend/internal/common/logger"
	cardrepo "cardtool-backend/internal/features/card/repository"
	cardservice "cardtool-backend/internal/features/card/service"
	"cardtool-backend/internal/features/webhook/repository"
)

const maxWebhookBody = 1 << 20

// StripeHandler answers issuing authorization requests in real time and
// books captured transactions against the ledger.
type StripeHandler struct {
	secret string
	cards  cardservice.CardService
	events repository.EventStore
}

func NewStripeHandler(secret string, cards cardservice.CardService, events repository.EventStore) *StripeHandler {
	return &StripeHandler{secret: secret, cards: cards, events: events}
}

func (h *StripeHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/stripe", h.handle)
}

func (h *StripeHandler) handle(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	// The api_version pinned in the Stripe dashboard is allowed to drift
	// from the SDK's; the payload subset read here is stable across them.
	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.Warn().Err(err).Msg("stripe webhook signature rejected")
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	switch event.Type {
	case "issuing_authorization.request":
		h.handleAuthorization(c, &event)
	case "issuing_transaction.created":
		h.handleCapture(c, &event)
	default:
		// Unhandled types are acknowledged so the provider stops retrying.
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (h *StripeHandler) handleAuthorization(c *gin.Context, event *stripe.Event) {
	var authz stripe.IssuingAuthorization
	if err := json.Unmarshal(event.Data.Raw, &authz); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	amountMinor := authz.Amount
	if authz.PendingRequest != nil {
		amountMinor = authz.PendingRequest.Amount
	}
	amount := decimal.New(amountMinor, -2).Abs()

	var cardID string
	if authz.Card != nil {
		cardID = authz.Card.ID
	}

	approved, reason, err := h.cards.AuthorizeSpend(c.Request.Context(), cardID, amount)
	if err != nil {
		logger.Error().Err(err).Str("card", cardID).Msg("authorization decision failed")
		c.JSON(http.StatusOK, gin.H{"approved": false, "metadata": gin.H{"reason": "internal_error"}})
		return
	}

	if !approved {
		c.JSON(http.StatusOK, gin.H{"approved": false, "metadata": gin.H{"reason": reason}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": true})
}

func (h *StripeHandler) handleCapture(c *gin.Context, event *stripe.Event) {
	fresh, err := h.events.InsertEvent(c.Request.Context(), "stripe", event.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	if !fresh {
		c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
		return
	}

	var tx stripe.IssuingTransaction
	if err := json.Unmarshal(event.Data.Raw, &tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	var cardID string
	if tx.Card != nil {
		cardID = tx.Card.ID
	}
	amount := decimal.New(tx.Amount, -2).Abs()

	err = h.cards.RecordSpend(c.Request.Context(), cardID, amount, tx.ID)
	if errors.Is(err, cardrepo.ErrCardNotFound) {
		// Orphaned capture for a card this system never issued.
		logger.Warn().Str("card", cardID).Str("tx", tx.ID).Msg("capture for unknown card acknowledged")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if err != nil {
		logger.Error().Err(err).Str("tx", tx.ID).Msg("record card transaction failed")
		// Release the dedup row so the provider's retry can book the
		// capture instead of hitting a duplicate no-op.
		if delErr := h.events.DeleteEvent(c.Request.Context(), "stripe", event.ID); delErr != nil {
			logger.Error().Err(delErr).Str("event", event.ID).Msg("failed to release webhook event")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
