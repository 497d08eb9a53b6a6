// Package hubspot provides a rate-limited, retrying client for the HubSpot
// CRM APIs used by the report pipeline.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/resilience"
)

// Client defines the HubSpot operations used by the report pipeline.
type Client interface {
	ListDeals(ctx context.Context) ([]model.Deal, error)
	ListContacts(ctx context.Context) ([]model.Contact, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)
	ListOwners(ctx context.Context) ([]model.Owner, error)
	ListDealPipelines(ctx context.Context) ([]model.Pipeline, error)

	// CountContactsCreatedBetween counts contacts created in the half-open
	// interval [start, end) via the search endpoint, so the filtering is
	// API-side and memory stays bounded.
	CountContactsCreatedBetween(ctx context.Context, start, end time.Time) (int, error)

	ListForms(ctx context.Context) ([]model.TrackedForm, error)
	// FormSubmissions returns one page of a form's submission history.
	// Precondition: HubSpot returns submissions newest-first; callers rely
	// on that ordering to stop paginating early.
	FormSubmissions(ctx context.Context, formGUID, after string) (*SubmissionPage, error)

	ListLists(ctx context.Context) ([]model.TrackedList, error)
	ListSize(ctx context.Context, listID string) (int, error)

	// DealContactAssociations maps each deal id to its associated contact ids.
	DealContactAssociations(ctx context.Context, dealIDs []string) (map[string][]string, error)

	ListMarketingEmails(ctx context.Context, limit int) ([]MarketingEmail, error)
}

// SubmissionPage is one page of form submissions plus the cursor for the next.
type SubmissionPage struct {
	Submissions []FormSubmission
	After       string
}

// FormSubmission is a single form fill.
type FormSubmission struct {
	SubmittedAt time.Time
	PageURL     string
}

// MarketingEmail is a marketing email summary used by the proofreading feature.
type MarketingEmail struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	PreviewText string `json:"preview_text"`
	FromName    string `json:"from_name"`
	State       string `json:"state"`
}

// defaultMaxRecords caps how many records a single pagination loop may
// accumulate before truncating (and logging) rather than running unbounded.
const defaultMaxRecords = 100_000

// Option configures the HubSpot client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit sets a per-second limit on outbound API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithMaxRecords overrides the pagination safety cap.
func WithMaxRecords(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxRecords = n
		}
	}
}

// WithRetryConfig overrides the per-request retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	baseURL    string
	tokens     TokenSource
	http       *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	maxRecords int
}

// NewClient creates a HubSpot client authenticated through ts.
func NewClient(ts TokenSource, opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.hubapi.com",
		tokens:  ts,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(8, 8),
		retry:      resilience.DefaultRetryConfig(),
		maxRecords: defaultMaxRecords,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// send performs one HTTP round-trip: rate-limiter wait, bearer auth, JSON
// body in/out. Non-2xx responses come back as typed errors (429 rate-limit,
// 5xx transient, the rest categorized APIErrors).
func (c *httpClient) send(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "hubspot: rate limit wait")
		}
	}

	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "hubspot: marshal request body")
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return eris.Wrap(err, "hubspot: create request")
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "hubspot: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "hubspot: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp, body)
	}

	if out != nil {
		if raw, ok := out.(*[]byte); ok {
			*raw = body
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "hubspot: unmarshal response")
		}
	}
	return nil
}

// do wraps send with exponential-backoff retries on transient and
// rate-limited errors. The server's Retry-After is honored when present.
func (c *httpClient) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("hubspot", op)
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return c.send(ctx, method, path, query, in, out)
	})
}
