package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/middleware"
	"cardtool-backend/internal/features/wallet/models"
	"cardtool-backend/internal/features/wallet/service"
)

type AdminHandler struct {
	service service.WalletService
}

func NewAdminHandler(service service.WalletService) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/withdrawals", h.listWithdrawals)
	router.PATCH("/withdrawals/:id", h.reviewWithdrawal)
}

// @Summary List withdrawals pending review
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /admin/withdrawals [get]
func (h *AdminHandler) listWithdrawals(c *gin.Context) {
	withdrawals, err := h.service.PendingWithdrawals(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if withdrawals == nil {
		withdrawals = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "withdrawals": withdrawals})
}

type reviewRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
}

// @Summary Approve or reject a pending withdrawal
// @Description Approval marks the withdrawal completed; rejection refunds the reserved amount.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "transaction id"
// @Param request body reviewRequest true "approve or reject"
// @Success 200 {object} map[string]interface{}
// @Router /admin/withdrawals/{id} [patch]
func (h *AdminHandler) reviewWithdrawal(c *gin.Context) {
	adminID, _ := middleware.TelegramID(c)

	txID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("id", "not a transaction id"))
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}

	status, err := h.service.ReviewWithdrawal(c.Request.Context(), txID, req.Action == "approve", adminID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}
