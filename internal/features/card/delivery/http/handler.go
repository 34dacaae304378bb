package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/middleware"
	"cardtool-backend/internal/features/card/models"
	"cardtool-backend/internal/features/card/service"
)

type CardHandler struct {
	service service.CardService
}

func NewCardHandler(service service.CardService) *CardHandler {
	return &CardHandler{service: service}
}

func (h *CardHandler) RegisterRoutes(router *gin.RouterGroup) {
	cards := router.Group("/cards")
	{
		cards.GET("", h.list)
		cards.POST("/virtual/purchase", h.purchase)
		cards.GET("/virtual/details", h.details)
		cards.POST("/virtual/status", h.setStatus)
	}
}

// @Summary List the user's cards
// @Tags cards
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cards [get]
func (h *CardHandler) list(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	cards, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if cards == nil {
		cards = []*models.Card{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "cards": cards})
}

// @Summary Purchase a virtual card
// @Description Debits the card price and provisions a virtual card. Requires approved identity verification.
// @Tags cards
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "KYC not approved"
// @Failure 422 {object} map[string]interface{} "Insufficient balance"
// @Router /cards/virtual/purchase [post]
func (h *CardHandler) purchase(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	card, err := h.service.Purchase(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "card": card})
}

// @Summary Full card details
// @Description Returns PAN, CVC and expiry fetched live from the issuer. The response is never cacheable.
// @Tags cards
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /cards/virtual/details [get]
func (h *CardHandler) details(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	details, err := h.service.Details(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true, "card": details})
}

type statusRequest struct {
	Action string `json:"action" binding:"required,oneof=freeze unfreeze"`
}

// @Summary Freeze or unfreeze the card
// @Tags cards
// @Accept json
// @Produce json
// @Param request body statusRequest true "freeze or unfreeze"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{} "Card is blocked"
// @Router /cards/virtual/status [post]
func (h *CardHandler) setStatus(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("action", "must be freeze or unfreeze"))
		return
	}

	card, err := h.service.SetStatus(c.Request.Context(), userID, req.Action)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "card": card})
}
