package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "cardtool-backend/internal/common/errors"
	"cardtool-backend/internal/common/logger"
)

// RequestID tags every request with an id, generating one when the client
// did not send X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Recovery converts panics into a generic 500. Stack traces are logged,
// never returned.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": gin.H{"code": apperrors.ErrCodeInternal, "message": "internal server error"},
		})
	})
}

// AbortWithError terminates the request with the status and envelope derived
// from the error. Unauthorized responses are stripped down to {"ok":false}
// so nothing about session state leaks; everything unexpected becomes a
// generic 500 with the detail kept server-side.
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal server error")
	}

	logError(c, appErr)

	if appErr.IsUnauthorized() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	body := gin.H{"code": appErr.Code, "message": appErr.Message}
	if appErr.IsInternal() && appErr.Code != apperrors.ErrCodeRPCMissing {
		// Generic message only; the real cause stayed in the log.
		body = gin.H{"code": apperrors.ErrCodeInternal, "message": "internal server error"}
	}
	if len(appErr.Details) > 0 && !appErr.IsInternal() {
		body["details"] = appErr.Details
	}

	c.AbortWithStatusJSON(httpStatus(appErr.Code), gin.H{"ok": false, "error": body})
}

func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden, apperrors.ErrCodeKYCRequired, apperrors.ErrCodeCardBlocked:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeExternalAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, appErr *apperrors.AppError) {
	event := logger.Warn()
	if appErr.IsInternal() {
		event = logger.Error()
	}
	event.
		Str("request_id", GetRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Err(appErr).
		Msg("Request failed")
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
