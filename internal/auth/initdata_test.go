package auth

import (
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"
)

const testBotToken = "7342037359:AAFQdrK9bSLqWQmdDjyDqJJRt3H7Y_qe2lQ"

// buildInitData signs a payload with the reference implementation from
// init-data-golang and assembles the raw query string a Telegram client
// would send.
func buildInitData(t *testing.T, payload map[string]string, authDate time.Time) string {
	t.Helper()
	hash := initdata.Sign(payload, testBotToken, authDate)

	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	values.Set("auth_date", fmt.Sprintf("%d", authDate.Unix()))
	values.Set("hash", hash)
	return values.Encode()
}

func defaultPayload() map[string]string {
	return map[string]string{
		"query_id": "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":     `{"id":279058397,"first_name":"Vladislav","last_name":"Kibenko","username":"vdkfrost","photo_url":"https://t.me/i/userpic/320/vdkfrost.jpg"}`,
	}
}

func TestValidateInitData_Valid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := buildInitData(t, defaultPayload(), now.Add(-time.Minute))

	got, err := ValidateInitData(raw, testBotToken, 24*time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, "279058397", got.TelegramID.String())
	assert.Equal(t, "vdkfrost", got.User.Username)
	assert.Equal(t, "Vladislav", got.User.FirstName)
	assert.Equal(t, "AAHdF6IQAAAAAN0XohDhrOrc", got.QueryID)
	assert.Equal(t, raw, got.Raw)

	// Hash in the result equals the hash query parameter.
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, values.Get("hash"), got.Hash)
}

func TestValidateInitData_IDBeyond53Bits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	payload := map[string]string{
		// 2^53 + 1: JavaScript clients cannot round-trip this, we must.
		"user": `{"id":9007199254740993,"first_name":"big"}`,
	}
	raw := buildInitData(t, payload, now)

	got, err := ValidateInitData(raw, testBotToken, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", got.TelegramID.String())
}

func TestValidateInitData_AnyMutatedByteFails(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := buildInitData(t, defaultPayload(), now.Add(-time.Minute))

	values, err := url.ParseQuery(raw)
	require.NoError(t, err)

	for key := range values {
		if key == "hash" {
			continue
		}
		t.Run(key, func(t *testing.T) {
			tampered := url.Values{}
			for k, vs := range values {
				tampered.Set(k, vs[0])
			}
			v := []byte(tampered.Get(key))
			v[0] ^= 0x01
			tampered.Set(key, string(v))

			_, err := ValidateInitData(tampered.Encode(), testBotToken, 24*time.Hour, now)
			require.Error(t, err)
			var initErr *InitDataError
			require.ErrorAs(t, err, &initErr)
		})
	}
}

func TestValidateInitData_TamperedHash(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := buildInitData(t, defaultPayload(), now)

	values, _ := url.ParseQuery(raw)
	hash := []byte(values.Get("hash"))
	if hash[0] == 'a' {
		hash[0] = 'b'
	} else {
		hash[0] = 'a'
	}
	values.Set("hash", string(hash))

	_, err := ValidateInitData(values.Encode(), testBotToken, time.Hour, now)
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestValidateInitData_WrongBotToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := buildInitData(t, defaultPayload(), now)

	_, err := ValidateInitData(raw, "1234:other-token", time.Hour, now)
	assert.ErrorContains(t, err, "hash mismatch")
}

func TestValidateInitData_FreshnessWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	maxAge := 30 * time.Minute

	tests := []struct {
		name     string
		authDate time.Time
		wantErr  string
	}{
		{"exactly max age old", now.Add(-maxAge), ""},
		{"one second past max age", now.Add(-maxAge - time.Second), "expired"},
		{"59s in the future", now.Add(59 * time.Second), ""},
		{"61s in the future", now.Add(61 * time.Second), "future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildInitData(t, defaultPayload(), tt.authDate)
			_, err := ValidateInitData(raw, testBotToken, maxAge, now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInitData_Rejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	noUser := buildInitData(t, map[string]string{"query_id": "AAE"}, now)
	badUserJSON := buildInitData(t, map[string]string{"user": `{"id":`}, now)
	noID := buildInitData(t, map[string]string{"user": `{"first_name":"x"}`}, now)
	stringID := buildInitData(t, map[string]string{"user": `{"id":"abc"}`}, now)

	tests := []struct {
		name    string
		raw     string
		token   string
		maxAge  time.Duration
		wantErr string
	}{
		{"empty init data", "", testBotToken, time.Hour, "empty init data"},
		{"empty bot token", "hash=aa", "", time.Hour, "empty bot token"},
		{"non-positive max age", "hash=aa", testBotToken, 0, "max age"},
		{"missing hash", "auth_date=1", testBotToken, time.Hour, "hash field missing"},
		{"missing user", noUser, testBotToken, time.Hour, "user field missing"},
		{"unparseable user json", badUserJSON, testBotToken, time.Hour, "unparseable"},
		{"user without id", noID, testBotToken, time.Hour, "unparseable"},
		{"non-numeric id", stringID, testBotToken, time.Hour, "unparseable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateInitData(tt.raw, tt.token, tt.maxAge, now)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
