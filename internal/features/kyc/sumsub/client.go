package sumsub

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	maxAttempts  = 3
	retryBackoff = 150 * time.Millisecond
)

// APIError is a non-2xx answer from the Sumsub API.
type APIError struct {
	Status      int    `json:"-"`
	Code        int    `json:"code"`
	Description string `json:"description"`
	ErrorName   string `json:"errorName"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sumsub api error: status=%d code=%d name=%q description=%q", e.Status, e.Code, e.ErrorName, e.Description)
}

// IsAlreadyExists reports whether the error means the applicant is already
// registered, which callers treat as success.
func IsAlreadyExists(err error) bool {
	apiErr, ok := err.(*APIError)
	if !ok {
		return false
	}
	return apiErr.Status == http.StatusConflict || strings.Contains(strings.ToLower(apiErr.ErrorName), "exist")
}

// Applicant is the subset of the Sumsub applicant resource the backend uses.
type Applicant struct {
	ID             string `json:"id"`
	ExternalUserID string `json:"externalUserId"`
	Review         struct {
		ReviewStatus string `json:"reviewStatus"`
	} `json:"review"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	appToken   string
	secretKey  string
	now        func() time.Time
}

func NewClient(baseURL, appToken, secretKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		appToken:   appToken,
		secretKey:  secretKey,
		now:        time.Now,
	}
}

// signRequest computes the X-App-Access-Sig value: hex HMAC-SHA256 of the
// unix timestamp, the uppercase method, the path with query, and the body.
func signRequest(secretKey string, ts int64, method, pathWithQuery string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte(method))
	mac.Write([]byte(pathWithQuery))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, pathWithQuery string, body []byte, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt-1)):
			}
		}

		lastErr = c.doOnce(ctx, method, pathWithQuery, body, out)
		if lastErr == nil {
			return nil
		}
		// Client errors are final; only server-side failures are retried.
		if apiErr, ok := lastErr.(*APIError); ok && apiErr.Status < http.StatusInternalServerError {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, pathWithQuery string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathWithQuery, bytes.NewReader(body))
	if err != nil {
		return err
	}

	ts := c.now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Token", c.appToken)
	req.Header.Set("X-App-Access-Ts", strconv.FormatInt(ts, 10))
	req.Header.Set("X-App-Access-Sig", signRequest(c.secretKey, ts, method, pathWithQuery, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sumsub request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("sumsub response: %w", err)
		}
	}
	return nil
}

// CreateApplicant registers a new applicant under the given verification
// level. An "already exists" answer is surfaced as an APIError; callers check
// it with IsAlreadyExists.
func (c *Client) CreateApplicant(ctx context.Context, externalUserID, levelName string) (*Applicant, error) {
	body, err := json.Marshal(map[string]string{"externalUserId": externalUserID})
	if err != nil {
		return nil, err
	}

	var applicant Applicant
	path := "/resources/applicants?levelName=" + levelName
	if err := c.do(ctx, http.MethodPost, path, body, &applicant); err != nil {
		return nil, err
	}
	return &applicant, nil
}

type accessTokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// AccessToken issues a short-lived WebSDK token for the applicant.
func (c *Client) AccessToken(ctx context.Context, externalUserID, levelName string) (string, error) {
	var resp accessTokenResponse
	path := fmt.Sprintf("/resources/accessTokens?userId=%s&levelName=%s&ttlInSecs=600", externalUserID, levelName)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}
