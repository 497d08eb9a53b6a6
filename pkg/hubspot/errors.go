package hubspot

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/kpi-report-cli/internal/resilience"
)

// ErrorCategory classifies an API failure so callers can show an actionable
// message instead of a generic one.
type ErrorCategory string

const (
	CategoryUnauthorized ErrorCategory = "unauthorized"
	CategoryForbidden    ErrorCategory = "forbidden"
	CategoryNotFound     ErrorCategory = "not_found"
	CategoryRateLimited  ErrorCategory = "rate_limited"
	CategoryServer       ErrorCategory = "server"
	CategoryBadRequest   ErrorCategory = "bad_request"
)

// APIError is a non-2xx response from the HubSpot API. Message never
// contains credentials; it is safe to surface to the user.
type APIError struct {
	StatusCode int
	Category   ErrorCategory
	Message    string
	// MissingScope is set when HubSpot names the OAuth scope the token lacks.
	MissingScope string
}

func (e *APIError) Error() string {
	if e.MissingScope != "" {
		return fmt.Sprintf("hubspot: %s (%d): %s (missing scope %s)", e.Category, e.StatusCode, e.Message, e.MissingScope)
	}
	return fmt.Sprintf("hubspot: %s (%d): %s", e.Category, e.StatusCode, e.Message)
}

// newAPIError builds the typed error for a failed response. 429s come back
// wrapped as resilience.RateLimitError so the retry layer backs off; 5xx as
// resilience.TransientError.
func newAPIError(resp *http.Response, body []byte) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    gjson.GetBytes(body, "message").String(),
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		apiErr.Category = CategoryUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		apiErr.Category = CategoryForbidden
		// HubSpot reports the missing scope under errors[0].context.requiredScopes.
		if scope := gjson.GetBytes(body, "errors.0.context.requiredScopes.0").String(); scope != "" {
			apiErr.MissingScope = scope
		} else if scope := gjson.GetBytes(body, "context.requiredScopes.0").String(); scope != "" {
			apiErr.MissingScope = scope
		}
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Category = CategoryNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Category = CategoryRateLimited
		return resilience.NewRateLimitError(apiErr, parseRetryAfter(resp))
	case resp.StatusCode >= 500:
		apiErr.Category = CategoryServer
		return resilience.NewTransientError(apiErr, resp.StatusCode)
	default:
		apiErr.Category = CategoryBadRequest
	}
	return apiErr
}

func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
