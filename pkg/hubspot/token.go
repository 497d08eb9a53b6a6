package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Token is an access token with its expiry instant.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenSource supplies a valid access token for each API call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token (private-app tokens never expire).
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token(context.Context) (string, error) {
	if s == "" {
		return "", eris.New("hubspot: no access token configured")
	}
	return string(s), nil
}

// RefreshFunc exchanges a refresh token for a fresh access token.
type RefreshFunc func(ctx context.Context) (Token, error)

// PersistFunc stores a refreshed token so other processes and concurrent
// requests pick it up instead of refreshing again.
type PersistFunc func(ctx context.Context, tok Token) error

// CachingTokenSource hands out a cached access token and refreshes it ahead
// of expiry. Refreshes are serialized by a mutex so concurrent report
// requests trigger at most one refresh, and the refreshed value is persisted
// once through the Persist hook. The clock is injected for tests.
type CachingTokenSource struct {
	mu      sync.Mutex
	current Token
	refresh RefreshFunc
	persist PersistFunc
	now     func() time.Time
	skew    time.Duration
}

// TokenSourceOption configures a CachingTokenSource.
type TokenSourceOption func(*CachingTokenSource)

// WithClock injects the clock used for expiry checks.
func WithClock(now func() time.Time) TokenSourceOption {
	return func(ts *CachingTokenSource) { ts.now = now }
}

// WithExpirySkew sets how far ahead of expiry a refresh is triggered.
func WithExpirySkew(d time.Duration) TokenSourceOption {
	return func(ts *CachingTokenSource) { ts.skew = d }
}

// WithPersist sets the hook invoked after every successful refresh.
func WithPersist(persist PersistFunc) TokenSourceOption {
	return func(ts *CachingTokenSource) { ts.persist = persist }
}

// NewCachingTokenSource seeds the cache with initial (possibly expired) and
// refreshes through refresh when needed.
func NewCachingTokenSource(initial Token, refresh RefreshFunc, opts ...TokenSourceOption) *CachingTokenSource {
	ts := &CachingTokenSource{
		current: initial,
		refresh: refresh,
		now:     time.Now,
		skew:    2 * time.Minute,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token implements TokenSource.
func (ts *CachingTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.current.AccessToken != "" && ts.now().Add(ts.skew).Before(ts.current.ExpiresAt) {
		return ts.current.AccessToken, nil
	}

	tok, err := ts.refresh(ctx)
	if err != nil {
		return "", eris.Wrap(err, "hubspot: refresh token")
	}
	ts.current = tok

	if ts.persist != nil {
		if err := ts.persist(ctx, tok); err != nil {
			// The token is still valid for this process; other processes
			// will refresh on their own.
			zap.L().Warn("hubspot: persisting refreshed token failed", zap.Error(err))
		}
	}
	return tok.AccessToken, nil
}

// NewOAuthRefresher returns a RefreshFunc that performs the standard OAuth
// refresh-token grant against tokenURL (the production endpoint when empty).
func NewOAuthRefresher(hc *http.Client, tokenURL, clientID, clientSecret, refreshToken string) RefreshFunc {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if tokenURL == "" {
		tokenURL = "https://api.hubapi.com/oauth/v1/token"
	}
	return func(ctx context.Context) (Token, error) {
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {clientID},
			"client_secret": {clientSecret},
			"refresh_token": {refreshToken},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return Token{}, eris.Wrap(err, "hubspot: create refresh request")
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := hc.Do(req)
		if err != nil {
			return Token{}, eris.Wrap(err, "hubspot: refresh request")
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return Token{}, eris.Wrap(err, "hubspot: read refresh response")
		}
		if resp.StatusCode != http.StatusOK {
			return Token{}, newAPIError(resp, body)
		}

		var parsed struct {
			AccessToken string `json:"access_token"`
			ExpiresIn   int    `json:"expires_in"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return Token{}, eris.Wrap(err, "hubspot: unmarshal refresh response")
		}
		return Token{
			AccessToken: parsed.AccessToken,
			ExpiresAt:   time.Now().UTC().Add(time.Duration(parsed.ExpiresIn) * time.Second),
		}, nil
	}
}
