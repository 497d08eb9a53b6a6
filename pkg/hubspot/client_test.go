package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-report-cli/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		JitterFraction: 0,
	}
}

func newTestClient(srvURL string) Client {
	return NewClient(StaticTokenSource("test-token"),
		WithBaseURL(srvURL),
		WithRateLimit(10000),
		WithRetryConfig(fastRetry()),
	)
}

func dealPage(ids []string, after string) map[string]any {
	results := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		results = append(results, map[string]any{
			"id": id,
			"properties": map[string]string{
				"dealname":   "Deal " + id,
				"amount":     "100",
				"dealstage":  "appointmentscheduled",
				"pipeline":   "default",
				"createdate": "2025-02-01T00:00:00Z",
			},
		})
	}
	body := map[string]any{"results": results}
	if after != "" {
		body["paging"] = map[string]any{"next": map[string]string{"after": after}}
	}
	return body
}

func TestListDeals_FollowsCursor(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/crm/v3/objects/deals", r.URL.Path)

		switch r.URL.Query().Get("after") {
		case "":
			json.NewEncoder(w).Encode(dealPage([]string{"1", "2"}, "cursor-2"))
		case "cursor-2":
			json.NewEncoder(w).Encode(dealPage([]string{"3"}, ""))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))
	defer srv.Close()

	deals, err := newTestClient(srv.URL).ListDeals(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 3)
	assert.Equal(t, "Deal 1", deals[0].Name)
	assert.Equal(t, 100.0, deals[0].Amount)
	assert.Equal(t, "3", deals[2].ID)
}

func TestListDeals_RateLimitedThenSuccess_NoDuplicatesOrGaps(t *testing.T) {
	t.Parallel()

	// First page succeeds; the second page 429s three times before
	// succeeding. The final result must match an unthrottled baseline.
	var secondPageAttempts atomic.Int64
	handler := func(throttle bool) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("after") {
			case "":
				json.NewEncoder(w).Encode(dealPage([]string{"1", "2"}, "p2"))
			case "p2":
				if throttle && secondPageAttempts.Add(1) <= 3 {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(http.StatusTooManyRequests)
					fmt.Fprint(w, `{"message":"rate limited"}`)
					return
				}
				json.NewEncoder(w).Encode(dealPage([]string{"3", "4"}, ""))
			}
		}
	}

	baselineSrv := httptest.NewServer(handler(false))
	defer baselineSrv.Close()
	throttledSrv := httptest.NewServer(handler(true))
	defer throttledSrv.Close()

	baseline, err := newTestClient(baselineSrv.URL).ListDeals(context.Background())
	require.NoError(t, err)

	throttled, err := newTestClient(throttledSrv.URL).ListDeals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, baseline, throttled)
	assert.EqualValues(t, 4, secondPageAttempts.Load())
}

func TestListDeals_RateLimitExhaustion_ReturnsPartial(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") == "" {
			json.NewEncoder(w).Encode(dealPage([]string{"1", "2"}, "p2"))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"message":"rate limited"}`)
	}))
	defer srv.Close()

	deals, err := newTestClient(srv.URL).ListDeals(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 2, "expected the successfully fetched pages, not a failure")
}

func TestListDeals_SafetyCapTruncates(t *testing.T) {
	t.Parallel()

	var page_ atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := page_.Add(1)
		ids := []string{
			strconv.FormatInt(n*2-1, 10),
			strconv.FormatInt(n*2, 10),
		}
		// Endless listing: always hand out another cursor.
		json.NewEncoder(w).Encode(dealPage(ids, fmt.Sprintf("c%d", n)))
	}))
	defer srv.Close()

	client := NewClient(StaticTokenSource("test-token"),
		WithBaseURL(srv.URL),
		WithRateLimit(10000),
		WithRetryConfig(fastRetry()),
		WithMaxRecords(5),
	)
	deals, err := client.ListDeals(context.Background())
	require.NoError(t, err)
	assert.Len(t, deals, 5)
}

func TestDo_ForbiddenSurfacesMissingScope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"This app hasn't been granted all required scopes","errors":[{"context":{"requiredScopes":["crm.objects.deals.read"]}}]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListDeals(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CategoryForbidden, apiErr.Category)
	assert.Equal(t, "crm.objects.deals.read", apiErr.MissingScope)
}

func TestDo_NotFoundCategorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"resource not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).ListSize(context.Background(), "999")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CategoryNotFound, apiErr.Category)
}

func TestCountContactsCreatedBetween_HalfOpenInterval(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)

		var req struct {
			FilterGroups []struct {
				Filters []struct {
					PropertyName string `json:"propertyName"`
					Operator     string `json:"operator"`
					Value        string `json:"value"`
					HighValue    string `json:"highValue"`
				} `json:"filters"`
			} `json:"filterGroups"`
			Limit int `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.FilterGroups, 1)
		f := req.FilterGroups[0].Filters[0]
		assert.Equal(t, "createdate", f.PropertyName)
		assert.Equal(t, "BETWEEN", f.Operator)
		assert.Equal(t, strconv.FormatInt(start.UnixMilli(), 10), f.Value)
		assert.Equal(t, strconv.FormatInt(end.UnixMilli()-1, 10), f.HighValue)
		assert.Equal(t, 1, req.Limit)

		fmt.Fprint(w, `{"total":42,"results":[]}`)
	}))
	defer srv.Close()

	total, err := newTestClient(srv.URL).CountContactsCreatedBetween(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
}

func TestListContacts_ParsesBecameProperties(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":"7","properties":{
			"firstname":"Ada","lastname":"Lovelace","email":"ada@example.com",
			"lifecyclestage":"customer",
			"createdate":"1738368000000",
			"hs_lifecyclestage_lead_date":"2025-01-15T00:00:00Z",
			"hs_lifecyclestage_marketingqualifiedlead_date":""
		}}]}`)
	}))
	defer srv.Close()

	contacts, err := newTestClient(srv.URL).ListContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	c := contacts[0]
	assert.Equal(t, "Ada", c.FirstName)
	assert.Equal(t, "2025-01-15T00:00:00Z", c.Became["lead"])
	_, hasMQL := c.Became["marketingqualifiedlead"]
	assert.False(t, hasMQL, "empty became values must not be stored")
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), c.CreatedAt)
}

func TestDealContactAssociations_Batches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v4/associations/deals/contacts/batch/read", r.URL.Path)
		fmt.Fprint(w, `{"results":[
			{"from":{"id":"d1"},"to":[{"toObjectId":101},{"toObjectId":102}]},
			{"from":{"id":"d2"},"to":[{"toObjectId":103}]}
		]}`)
	}))
	defer srv.Close()

	assoc, err := newTestClient(srv.URL).DealContactAssociations(context.Background(), []string{"d1", "d2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102"}, assoc["d1"])
	assert.Equal(t, []string{"103"}, assoc["d2"])
}

func TestListDealPipelines_ParsesStageProbability(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"id":"default","label":"Sales Pipeline","stages":[
			{"id":"appointmentscheduled","label":"Appointment Scheduled","metadata":{"probability":"0.2"}},
			{"id":"closedwon","label":"Closed Won","metadata":{"probability":"1.0"}}
		]}]}`)
	}))
	defer srv.Close()

	pipelines, err := newTestClient(srv.URL).ListDealPipelines(context.Background())
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	require.Len(t, pipelines[0].Stages, 2)
	assert.Equal(t, 0.2, pipelines[0].Stages[0].Probability)
	assert.Equal(t, "Closed Won", pipelines[0].Stages[1].Label)
}

func TestFormSubmissions_ParsesTimestamps(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/form-integrations/v1/submissions/forms/form-guid-1", r.URL.Path)
		fmt.Fprint(w, `{"results":[{"submittedAt":1738368000000,"pageUrl":"https://x.com/contact"}],"paging":{"next":{"after":"n1"}}}`)
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).FormSubmissions(context.Background(), "form-guid-1", "")
	require.NoError(t, err)
	require.Len(t, p.Submissions, 1)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), p.Submissions[0].SubmittedAt)
	assert.Equal(t, "n1", p.After)
}
