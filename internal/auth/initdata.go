// Package auth implements the trust boundary of the service: validation of
// Telegram Mini App initData and the stateless HMAC session token derived
// from it. Everything here is pure computation; no I/O, no clocks other than
// the injected one.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// futureSkew is the accepted clock skew for auth_date values ahead of the
// server clock. Telegram signs auth_date on its side; a minute covers real
// drift without opening a replay window.
const futureSkew = 60 * time.Second

// InitDataError reports why an initData payload was rejected.
type InitDataError struct {
	Reason string
	Cause  error
}

func (e *InitDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid init data: %s: %v", e.Reason, e.Cause)
	}
	return "invalid init data: " + e.Reason
}

func (e *InitDataError) Unwrap() error { return e.Cause }

func initDataErr(reason string) error {
	return &InitDataError{Reason: reason}
}

// InitDataUser is the user object embedded in initData.
type InitDataUser struct {
	// ID is arbitrary precision: Telegram user ids may exceed the 53-bit
	// range JavaScript clients round-trip safely, and the contract here is
	// to never truncate them.
	ID        *big.Int
	Username  string
	FirstName string
	LastName  string
	PhotoURL  string
}

// InitData is the verified result of a Telegram Mini App handshake.
type InitData struct {
	TelegramID *big.Int
	User       InitDataUser
	AuthDate   time.Time
	QueryID    string
	Raw        string
	Hash       string
}

// ValidateInitData verifies the authenticity and freshness of a raw initData
// query string against the bot token, following the Telegram WebApp contract:
//
//	secret  = HMAC-SHA256(key="WebAppData", message=botToken)
//	expect  = hex(HMAC-SHA256(key=secret, message=dataCheckString))
//
// where dataCheckString is every key=value pair except "hash", sorted, joined
// with "\n". The provided hash is compared in constant time. auth_date must
// lie within [now-maxAge, now+60s].
func ValidateInitData(initData, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	if initData == "" {
		return nil, initDataErr("empty init data")
	}
	if botToken == "" {
		return nil, initDataErr("empty bot token")
	}
	if maxAge <= 0 {
		return nil, initDataErr("max age must be positive")
	}
	if now.IsZero() {
		now = time.Now()
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, &InitDataError{Reason: "malformed query string", Cause: err}
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		return nil, initDataErr("hash field missing")
	}
	values.Del("hash")

	computed := computeInitDataHash(values, botToken)
	if !constantTimeEqual(computed, providedHash) {
		return nil, initDataErr("hash mismatch")
	}

	authDateRaw := values.Get("auth_date")
	if authDateRaw == "" {
		return nil, initDataErr("auth_date missing")
	}
	authUnix, err := strconv.ParseInt(authDateRaw, 10, 64)
	if err != nil || authUnix <= 0 {
		return nil, initDataErr("auth_date is not a positive unix timestamp")
	}
	authDate := time.Unix(authUnix, 0)
	if authDate.After(now.Add(futureSkew)) {
		return nil, initDataErr("auth_date is in the future")
	}
	if now.Sub(authDate) > maxAge {
		return nil, initDataErr("init data expired")
	}

	userRaw := values.Get("user")
	if userRaw == "" {
		return nil, initDataErr("user field missing")
	}
	user, err := parseInitDataUser(userRaw)
	if err != nil {
		return nil, &InitDataError{Reason: "user field unparseable", Cause: err}
	}

	return &InitData{
		TelegramID: new(big.Int).Set(user.ID),
		User:       *user,
		AuthDate:   authDate,
		QueryID:    values.Get("query_id"),
		Raw:        initData,
		Hash:       providedHash,
	}, nil
}

// computeInitDataHash builds the data-check string from the remaining pairs
// and runs the two-step HMAC chain. Pairs sort by key, ties by value.
func computeInitDataHash(values url.Values, botToken string) string {
	pairs := make([]string, 0, len(values))
	for key, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, key+"="+v)
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	secretKey := secretMac.Sum(nil)

	mac := hmac.New(sha256.New, secretKey)
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseInitDataUser(raw string) (*InitDataUser, error) {
	var payload struct {
		ID        json.Number `json:"id"`
		Username  string      `json:"username"`
		FirstName string      `json:"first_name"`
		LastName  string      `json:"last_name"`
		PhotoURL  string      `json:"photo_url"`
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("user id missing")
	}
	id, ok := new(big.Int).SetString(payload.ID.String(), 10)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("user id is not a positive integer")
	}
	return &InitDataUser{
		ID:        id,
		Username:  payload.Username,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		PhotoURL:  payload.PhotoURL,
	}, nil
}

// constantTimeEqual compares two strings without data-dependent timing.
// Mismatched lengths fail after a dummy comparison so the work done does not
// reveal how far beyond the shorter input the other reaches.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
