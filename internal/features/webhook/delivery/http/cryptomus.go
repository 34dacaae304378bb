package http

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cardtool-backend/internal/common/logger"
	"cardtool-backend/internal/features/payment/cryptomus"
)

// TopupResolver flips pending topup transactions by provider order id. A
// false return means no matching pending row existed, which webhooks treat
// as already-handled or orphaned.
type TopupResolver interface {
	CompleteTopupByOrderID(ctx context.Context, orderID string) (bool, error)
	RejectTopupByOrderID(ctx context.Context, orderID string) (bool, error)
}

// CryptomusHandler completes or rejects pending topups on payment webhooks.
//
// The provider signs the exact bytes it sent. When the signature rides in
// the body itself it was computed before the sign member was added, so
// verification strips that member textually from the raw bytes instead of
// re-serializing, which could reorder keys.
type CryptomusHandler struct {
	paymentKey string
	topups     TopupResolver
}

func NewCryptomusHandler(paymentKey string, topups TopupResolver) *CryptomusHandler {
	return &CryptomusHandler{paymentKey: paymentKey, topups: topups}
}

func (h *CryptomusHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/webhooks/cryptomus", h.handle)
}

// stripSignMember removes the top-level "sign" member from the raw body,
// returning the remaining bytes and the sign value. The token walk keeps
// track of where each member starts and ends, so a "sign" key inside a
// nested object is left untouched.
func stripSignMember(raw []byte) ([]byte, string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, "", false
	}

	first := true
	for dec.More() {
		memberStart := dec.InputOffset()
		keyTok, err := dec.Token()
		if err != nil {
			return nil, "", false
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, "", false
		}
		if key != "sign" {
			first = false
			continue
		}

		var sign string
		if err := json.Unmarshal(value, &sign); err != nil || sign == "" {
			return nil, "", false
		}

		end := dec.InputOffset()
		if first {
			// No leading comma in the cut; drop the trailing one instead.
			for end < int64(len(raw)) && isJSONSpace(raw[end]) {
				end++
			}
			if end < int64(len(raw)) && raw[end] == ',' {
				end++
			}
		}
		stripped := append(append([]byte{}, raw[:memberStart]...), raw[end:]...)
		return stripped, sign, true
	}
	return nil, "", false
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func signaturesEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(got)), []byte(strings.ToLower(want))) == 1
}

// verify checks the header signature over the untouched body first, then
// falls back to the body-embedded form.
func (h *CryptomusHandler) verify(raw []byte, headerSign string) bool {
	if headerSign != "" {
		return signaturesEqual(headerSign, cryptomus.Sign(raw, h.paymentKey))
	}
	stripped, bodySign, ok := stripSignMember(raw)
	if !ok {
		return false
	}
	return signaturesEqual(bodySign, cryptomus.Sign(stripped, h.paymentKey))
}

type cryptomusPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	UUID    string `json:"uuid"`
}

func (h *CryptomusHandler) handle(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if !h.verify(raw, c.GetHeader("sign")) {
		logger.Warn().Msg("cryptomus webhook signature rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false})
		return
	}

	var payload cryptomusPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.OrderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	switch payload.Status {
	case "paid", "paid_over":
		flipped, err := h.topups.CompleteTopupByOrderID(c.Request.Context(), payload.OrderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
		if !flipped {
			// Already completed or never ours; acknowledge either way.
			logger.Debug().Str("order_id", payload.OrderID).Msg("cryptomus paid webhook was a no-op")
		}
	case "cancel", "fail":
		if _, err := h.topups.RejectTopupByOrderID(c.Request.Context(), payload.OrderID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
			return
		}
	default:
		// Intermediate statuses (check, process, confirm_check) carry no
		// ledger effect.
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
