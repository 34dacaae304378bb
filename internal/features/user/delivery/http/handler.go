package http

import (
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardtool-backend/internal/auth"
	"cardtool-backend/internal/common/config"
	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/middleware"
	"cardtool-backend/internal/features/user/service"
)

type AuthHandler struct {
	service service.UserService
	cfg     *config.Config
}

func NewAuthHandler(service service.UserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{service: service, cfg: cfg}
}

// RegisterRoutes mounts the public auth endpoints; RegisterProtected mounts
// the session-gated ones.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/telegram", h.loginTelegram)
		authGroup.POST("/dev", h.loginDev)
		authGroup.POST("/logout", h.logout)
	}
}

func (h *AuthHandler) RegisterProtected(router *gin.RouterGroup) {
	router.GET("/me", h.me)
}

type loginRequest struct {
	InitData string `json:"init_data"`
}

// @Summary Log in with Telegram initData
// @Description Validates the Mini App handshake and issues a session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param Authorization header string false "tma <raw initData>"
// @Param request body loginRequest false "initData in the body instead of the header"
// @Success 200 {object} map[string]interface{} "User row"
// @Failure 401 {object} map[string]interface{} "Invalid or expired initData"
// @Router /auth/telegram [post]
func (h *AuthHandler) loginTelegram(c *gin.Context) {
	raw := initDataFromRequest(c)
	if raw == "" {
		middleware.AbortWithError(c, apperrors.NewUnauthorized("init data missing"))
		return
	}

	data, err := auth.ValidateInitData(raw, h.cfg.Telegram.BotToken, h.cfg.InitDataMaxAge(), time.Now())
	if err != nil {
		middleware.AbortWithError(c, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "init data rejected"))
		return
	}

	user, err := h.service.Login(c.Request.Context(), data)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.setSessionCookie(c, data.TelegramID)
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// @Summary Dev login bypass
// @Description Issues a session for the configured dev Telegram id. Disabled outside development.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Bypass not enabled"
// @Router /auth/dev [post]
func (h *AuthHandler) loginDev(c *gin.Context) {
	if !h.cfg.Dev.BypassAuth {
		c.JSON(http.StatusNotFound, gin.H{"ok": false})
		return
	}

	user, err := h.service.LoginByID(c.Request.Context(), h.cfg.Dev.TelegramID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.setSessionCookie(c, big.NewInt(h.cfg.Dev.TelegramID))
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

// @Summary Log out
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /auth/logout [post]
func (h *AuthHandler) logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", !h.cfg.Debug, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{} "User row with balance"
// @Failure 401 {object} map[string]interface{}
// @Router /me [get]
func (h *AuthHandler) me(c *gin.Context) {
	telegramID, ok := middleware.TelegramID(c)
	if !ok {
		middleware.AbortWithError(c, apperrors.NewUnauthorized("no session"))
		return
	}

	user, err := h.service.Me(c.Request.Context(), telegramID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, telegramID *big.Int) {
	token := auth.NewSessionToken(telegramID, h.cfg.SessionTTL(), h.cfg.Session.Secret, time.Now())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, token, h.cfg.Session.TTLSeconds, "/", "", !h.cfg.Debug, true)
}

// initDataFromRequest reads initData from "Authorization: tma <raw>" or,
// failing that, from the JSON body.
func initDataFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, raw, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "tma") {
		return strings.TrimSpace(raw)
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.InitData
	}
	return ""
}
