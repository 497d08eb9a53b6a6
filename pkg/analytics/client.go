// Package analytics provides a client for the Google Analytics Data API
// used to pull website session totals and channel breakdowns.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the traffic-analytics operations used by the report pipeline.
type Client interface {
	// Sessions returns the total session count for [start, end) as a single
	// scalar, summing all rows of the API response.
	Sessions(ctx context.Context, propertyID string, start, end time.Time) (int64, error)
	// SessionsByChannel returns sessions broken down by default channel group.
	SessionsByChannel(ctx context.Context, propertyID string, start, end time.Time) ([]ChannelSessions, error)
}

// ChannelSessions is one row of a channel breakdown.
type ChannelSessions struct {
	Channel  string `json:"channel"`
	Sessions int64  `json:"sessions"`
}

// Option configures the analytics client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	token   TokenFunc
	baseURL string
	http    *http.Client
}

// TokenFunc supplies the bearer token for each call.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken returns a TokenFunc for a fixed token.
func StaticToken(tok string) TokenFunc {
	return func(context.Context) (string, error) {
		if tok == "" {
			return "", eris.New("analytics: no access token configured")
		}
		return tok, nil
	}
}

// NewClient creates a Google Analytics Data API client.
func NewClient(token TokenFunc, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://analyticsdata.googleapis.com/v1beta",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Metrics    []named     `json:"metrics"`
	Dimensions []named     `json:"dimensions,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type named struct {
	Name string `json:"name"`
}

type runReportResponse struct {
	Rows []struct {
		DimensionValues []struct {
			Value string `json:"value"`
		} `json:"dimensionValues"`
		MetricValues []struct {
			Value string `json:"value"`
		} `json:"metricValues"`
	} `json:"rows"`
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// runReport posts a report query with exponential backoff retries on
// transient failures.
func (c *httpClient) runReport(ctx context.Context, propertyID string, req runReportRequest) (*runReportResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: marshal request")
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/properties/%s:runReport", c.baseURL, propertyID)

	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "analytics: create request")
		}
		httpReq.Header.Set("Authorization", "Bearer "+tok)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = eris.Wrap(err, "analytics: request")
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "analytics: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("analytics: status %d: %s", resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("analytics: unexpected status %d: %s", resp.StatusCode, string(body))
		}

		var result runReportResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, eris.Wrap(err, "analytics: unmarshal response")
		}
		return &result, nil
	}

	return nil, lastErr
}

// gaDate formats a time for the API's date-range fields. The API's ranges
// are inclusive of the end date, so callers pass the half-open end and we
// step back one day.
func gaDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (c *httpClient) Sessions(ctx context.Context, propertyID string, start, end time.Time) (int64, error) {
	resp, err := c.runReport(ctx, propertyID, runReportRequest{
		DateRanges: []dateRange{{StartDate: gaDate(start), EndDate: gaDate(end.AddDate(0, 0, -1))}},
		Metrics:    []named{{Name: "sessions"}},
	})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, row := range resp.Rows {
		for _, mv := range row.MetricValues {
			n, err := strconv.ParseInt(mv.Value, 10, 64)
			if err != nil {
				continue
			}
			total += n
		}
	}
	return total, nil
}

func (c *httpClient) SessionsByChannel(ctx context.Context, propertyID string, start, end time.Time) ([]ChannelSessions, error) {
	resp, err := c.runReport(ctx, propertyID, runReportRequest{
		DateRanges: []dateRange{{StartDate: gaDate(start), EndDate: gaDate(end.AddDate(0, 0, -1))}},
		Metrics:    []named{{Name: "sessions"}},
		Dimensions: []named{{Name: "sessionDefaultChannelGroup"}},
	})
	if err != nil {
		return nil, err
	}

	out := make([]ChannelSessions, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		cs := ChannelSessions{}
		if len(row.DimensionValues) > 0 {
			cs.Channel = row.DimensionValues[0].Value
		}
		if len(row.MetricValues) > 0 {
			cs.Sessions, _ = strconv.ParseInt(row.MetricValues[0].Value, 10, 64)
		}
		out = append(out, cs)
	}
	return out, nil
}
