package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"strings"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "cc_session"

// Session is the stateless signed session of a verified Telegram user.
// Immutable once created; renewal means re-issuance.
type Session struct {
	TelegramID string `json:"telegram_id"`
	IssuedAt   int64  `json:"issued_at"`
	ExpiresAt  int64  `json:"expires_at"`
}

// NewSessionToken issues a token of the form
// base64url(payload) + "." + base64url(HMAC-SHA256(secret, base64url(payload))).
func NewSessionToken(telegramID *big.Int, ttl time.Duration, secret string, now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	payload, _ := json.Marshal(Session{
		TelegramID: telegramID.String(),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	})
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	return payloadB64 + "." + base64.RawURLEncoding.EncodeToString(signSession(payloadB64, secret))
}

// VerifySessionToken checks the token's signature and expiry. It returns nil
// for any defect (malformed token, bad signature, bad payload, expiry) and
// never an error: callers translate nil into an unauthorized failure, so no
// distinction between defects ever reaches a client.
func VerifySessionToken(token, secret string, now time.Time) *Session {
	if now.IsZero() {
		now = time.Now()
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil
	}

	// Compare raw signature bytes, not their encodings, so the comparison
	// is over exactly what was signed.
	providedSig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}
	if !hmac.Equal(signSession(parts[0], secret), providedSig) {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil
	}
	if session.TelegramID == "" || session.IssuedAt <= 0 || session.ExpiresAt <= 0 {
		return nil
	}
	if now.Unix() > session.ExpiresAt {
		return nil
	}
	return &session
}

// TelegramIDFromSession converts the session's id to an integer. A session
// whose id does not parse is treated as no session at all.
func TelegramIDFromSession(s *Session) (*big.Int, bool) {
	if s == nil {
		return nil, false
	}
	id, ok := new(big.Int).SetString(s.TelegramID, 10)
	if !ok || id.Sign() <= 0 {
		return nil, false
	}
	return id, true
}

func signSession(payloadB64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payloadB64))
	return mac.Sum(nil)
}
