package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardtool-backend/internal/common/middleware"
	"cardtool-backend/internal/features/kyc/service"
)

type KYCHandler struct {
	service service.KYCService
}

func NewKYCHandler(service service.KYCService) *KYCHandler {
	return &KYCHandler{service: service}
}

func (h *KYCHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/kyc/access-token", h.accessToken)
}

// @Summary Issue a WebSDK token for identity verification
// @Description Creates the applicant on first call and marks the user pending. The verification outcome arrives later over webhook.
// @Tags kyc
// @Produce json
// @Success 200 {object} map[string]interface{} "token"
// @Failure 401 {object} map[string]interface{}
// @Failure 502 {object} map[string]interface{} "provider unavailable"
// @Router /kyc/access-token [post]
func (h *KYCHandler) accessToken(c *gin.Context) {
	userID, _ := middleware.TelegramID(c)

	token, err := h.service.AccessToken(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "token": token})
}
