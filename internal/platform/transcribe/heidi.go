package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HeidiClient fetches consult transcripts from the Heidi scribe API. Every
// call is authenticated with a short-lived JWT exchanged for the API key; the
// client caches one token per user and refreshes it when it gets close to
// expiry.
type HeidiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu    sync.Mutex
	cache map[string]cachedToken

	now func() time.Time
}

type cachedToken struct {
	token   string
	expires time.Time
}

// Refresh tokens this long before they actually expire.
const heidiExpiryBuffer = 5 * time.Minute

// Fallback lifetime when a token carries no exp claim.
const heidiDefaultLifetime = 23 * time.Hour

func NewHeidi(baseURL, apiKey string) *HeidiClient {
	return &HeidiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   map[string]cachedToken{},
		now:     time.Now,
	}
}

// Token returns a valid JWT for the given user, from cache when possible.
func (c *HeidiClient) Token(ctx context.Context, email, userID string) (string, error) {
	key := email + ":" + userID

	c.mu.Lock()
	cached, ok := c.cache[key]
	c.mu.Unlock()
	if ok && cached.expires.After(c.now().Add(heidiExpiryBuffer)) {
		return cached.token, nil
	}

	token, err := c.fetchToken(ctx, email, userID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.cache[key] = cachedToken{token: token, expires: c.tokenExpiry(token)}
	c.mu.Unlock()
	return token, nil
}

func (c *HeidiClient) fetchToken(ctx context.Context, email, userID string) (string, error) {
	u := fmt.Sprintf("%s/jwt?email=%s&third_party_internal_id=%s",
		c.baseURL, url.QueryEscape(email), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Heidi-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("heidi auth request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("heidi auth error %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode heidi token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("heidi returned empty token")
	}
	return out.Token, nil
}

// tokenExpiry reads the exp claim from the token without verifying the
// signature; the token is only cached, never trusted locally.
func (c *HeidiClient) tokenExpiry(token string) time.Time {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err == nil {
		if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return c.now().Add(heidiDefaultLifetime)
}

// Transcript fetches the transcript of one scribe session.
func (c *HeidiClient) Transcript(ctx context.Context, email, userID, sessionID string) (string, error) {
	token, err := c.Token(ctx, email, userID)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/sessions/%s/transcript", c.baseURL, url.PathEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("heidi transcript request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("heidi transcript error %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Transcript string `json:"transcript"`
		Text       string `json:"text"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode heidi transcript: %w", err)
	}
	if out.Transcript != "" {
		return out.Transcript, nil
	}
	return out.Text, nil
}
