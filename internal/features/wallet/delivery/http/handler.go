package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/middleware"
	"cardtool-backend/internal/features/payment/coinbase"
	"cardtool-backend/internal/features/payment/cryptomus"
	"cardtool-backend/internal/features/wallet/models"
	"cardtool-backend/internal/features/wallet/service"
)

// CryptomusInvoicer creates hosted crypto invoices.
type CryptomusInvoicer interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, orderID string) (*cryptomus.Invoice, error)
}

// CoinbaseCharger creates Coinbase Commerce charges.
type CoinbaseCharger interface {
	CreateCharge(ctx context.Context, name string, amount decimal.Decimal, metadata map[string]string) (*coinbase.Charge, error)
}

type WalletHandler struct {
	service   service.WalletService
	cryptomus CryptomusInvoicer
	coinbase  CoinbaseCharger
}

func NewWalletHandler(service service.WalletService, cm CryptomusInvoicer, cb CoinbaseCharger) *WalletHandler {
	return &WalletHandler{service: service, cryptomus: cm, coinbase: cb}
}

func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/transactions", h.listTransactions)

	router.POST("/topup", h.topup)
	router.POST("/topup/cryptomus/create", h.topupCryptomus)
	router.POST("/topup/coinbase/create", h.topupCoinbase)

	transfers := router.Group("/transfers")
	{
		transfers.POST("/internal", h.transferInternal)
		transfers.POST("/withdraw", h.withdraw)
	}

	referrals := router.Group("/referrals")
	{
		referrals.GET("", h.referralStats)
		referrals.POST("/validate", h.referralValidate)
		referrals.POST("/claim", h.referralClaim)
	}
}

type amountRequest struct {
	AmountUSDT string `json:"amount_usdt" binding:"required"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewValidation("amount_usdt", "not a decimal number")
	}
	return amount, nil
}

// @Summary Transaction history
// @Tags wallet
// @Produce json
// @Param limit query int false "page size (max 100)"
// @Param offset query int false "page offset"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /transactions [get]
func (h *WalletHandler) listTransactions(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.service.Transactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "transactions": txs})
}

// @Summary Create a manual top-up record
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body amountRequest true "amount"
// @Success 200 {object} map[string]interface{}
// @Router /topup [post]
func (h *WalletHandler) topup(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}
	amount, err := parseAmount(req.AmountUSDT)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	txID, err := h.service.Topup(c.Request.Context(), userID, amount, "manual", uuid.NewString())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "transaction_id": txID})
}

// @Summary Create a Cryptomus invoice for a top-up
// @Description Records a pending topup keyed by a fresh order id, then asks Cryptomus for a hosted payment page. The webhook completes the topup.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body amountRequest true "amount"
// @Success 200 {object} map[string]interface{} "order id and payment url"
// @Router /topup/cryptomus/create [post]
func (h *WalletHandler) topupCryptomus(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}
	amount, err := parseAmount(req.AmountUSDT)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	orderID := uuid.NewString()
	if _, err := h.service.Topup(c.Request.Context(), userID, amount, "cryptomus", orderID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	invoice, err := h.cryptomus.CreateInvoice(c.Request.Context(), amount, "USDT", orderID)
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "payment provider unavailable"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": orderID, "payment_url": invoice.URL})
}

// @Summary Create a Coinbase Commerce charge for a top-up
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body amountRequest true "amount"
// @Success 200 {object} map[string]interface{} "charge code and hosted url"
// @Router /topup/coinbase/create [post]
func (h *WalletHandler) topupCoinbase(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}
	amount, err := parseAmount(req.AmountUSDT)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	orderID := uuid.NewString()
	if _, err := h.service.Topup(c.Request.Context(), userID, amount, "coinbase", orderID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	charge, err := h.coinbase.CreateCharge(c.Request.Context(), "Balance top-up", amount, map[string]string{"order_id": orderID})
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeExternalAPI, "payment provider unavailable"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "order_id": orderID, "charge_code": charge.Code, "payment_url": charge.HostedURL})
}

type transferRequest struct {
	ToUsername string `json:"to_username" binding:"required"`
	AmountUSDT string `json:"amount_usdt" binding:"required"`
}

// @Summary Internal peer transfer
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body transferRequest true "recipient and amount"
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{} "Insufficient balance"
// @Router /transfers/internal [post]
func (h *WalletHandler) transferInternal(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}
	amount, err := parseAmount(req.AmountUSDT)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	txID, err := h.service.Transfer(c.Request.Context(), userID, req.ToUsername, amount)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "transaction_id": txID})
}

type withdrawRequest struct {
	AmountUSDT string `json:"amount_usdt" binding:"required"`
	Address    string `json:"address" binding:"required"`
}

// @Summary Request a withdrawal
// @Description Queues a pending withdrawal for admin review.
// @Tags wallet
// @Accept json
// @Produce json
// @Param request body withdrawRequest true "amount and destination address"
// @Success 200 {object} map[string]interface{}
// @Router /transfers/withdraw [post]
func (h *WalletHandler) withdraw(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}
	amount, err := parseAmount(req.AmountUSDT)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	txID, err := h.service.Withdraw(c.Request.Context(), userID, amount, req.Address)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "transaction_id": txID})
}

// @Summary Referral stats
// @Tags referrals
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /referrals [get]
func (h *WalletHandler) referralStats(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	stats, err := h.service.ReferralStats(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "referrals": stats})
}

type referralValidateRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary Bind the inviter behind a referral code
// @Tags referrals
// @Accept json
// @Produce json
// @Param request body referralValidateRequest true "referral code"
// @Success 200 {object} map[string]interface{}
// @Router /referrals/validate [post]
func (h *WalletHandler) referralValidate(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	var req referralValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.NewValidation("body", err.Error()))
		return
	}

	if err := h.service.SetInviter(c.Request.Context(), userID, req.Code); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Claim accrued referral rewards
// @Tags referrals
// @Produce json
// @Success 200 {object} map[string]interface{} "claimed amount"
// @Router /referrals/claim [post]
func (h *WalletHandler) referralClaim(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	claimed, err := h.service.ClaimReferralRewards(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "claimed_usdt": claimed})
}
