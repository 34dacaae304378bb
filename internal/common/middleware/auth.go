package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cardtool-backend/internal/auth"
	apperrors "cardtool-backend/internal/common/errors"
)

const telegramIDKey = "telegram_id"

// RoleLookup resolves the role of a user; satisfied by the user service.
type RoleLookup interface {
	Role(ctx context.Context, telegramID int64) (string, error)
}

// SessionGuard authenticates requests from the cc_session cookie. It is pure
// and synchronous: a request with no valid session is rejected before any
// external service is touched.
func SessionGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := cookieValue(c.GetHeader("Cookie"), auth.SessionCookieName)
		if !ok {
			AbortWithError(c, apperrors.NewUnauthorized("session cookie missing"))
			return
		}

		session := auth.VerifySessionToken(token, secret, time.Now())
		id, ok := auth.TelegramIDFromSession(session)
		if !ok {
			AbortWithError(c, apperrors.NewUnauthorized("session invalid or expired"))
			return
		}
		// Telegram ids fit int64; a session whose id does not is no session.
		if !id.IsInt64() {
			AbortWithError(c, apperrors.NewUnauthorized("session id out of range"))
			return
		}

		c.Set(telegramIDKey, id.Int64())
		c.Next()
	}
}

// AdminGuard requires the authenticated user to have role=admin. Mount after
// SessionGuard.
func AdminGuard(roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := TelegramID(c)
		if !ok {
			AbortWithError(c, apperrors.NewUnauthorized("no session"))
			return
		}

		role, err := roles.Role(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if role != "admin" {
			AbortWithError(c, apperrors.New(apperrors.ErrCodeForbidden, "admin access required"))
			return
		}

		c.Next()
	}
}

// TelegramID returns the authenticated Telegram user id set by SessionGuard.
func TelegramID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(telegramIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// cookieValue extracts a cookie by splitting on ';' and the first '='.
// Deliberately naive: the only cookie this service reads is its own.
func cookieValue(header, name string) (string, bool) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		k, v, found := strings.Cut(part, "=")
		if found && k == name && v != "" {
			return v, true
		}
	}
	return "", false
}
