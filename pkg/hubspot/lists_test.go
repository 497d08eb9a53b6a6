package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLists_FollowsOffsetPaging(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm/v3/lists/search", r.URL.Path)

		var req struct {
			Offset int `json:"offset"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Offset {
		case 0:
			fmt.Fprint(w, `{"lists":[{"listId":"1","name":"Newsletter"},{"listId":"2","name":"Webinar"}],"hasMore":true,"offset":2}`)
		case 2:
			fmt.Fprint(w, `{"lists":[{"listId":"3","name":"Churn risk"}],"hasMore":false}`)
		default:
			t.Errorf("unexpected offset %d", req.Offset)
		}
	}))
	defer srv.Close()

	lists, err := newTestClient(srv.URL).ListLists(context.Background())
	require.NoError(t, err)
	require.Len(t, lists, 3)
	assert.Equal(t, "Newsletter", lists[0].Name)
	assert.Equal(t, "3", lists[2].ListID)
}

func TestListLists_SafetyCapTruncates(t *testing.T) {
	t.Parallel()

	var page_ atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := page_.Add(1)
		// Endless legacy paging: always claim there is more.
		fmt.Fprintf(w,
			`{"lists":[{"listId":"%d","name":"List %d"},{"listId":"%d","name":"List %d"}],"hasMore":true,"offset":%d}`,
			n*2-1, n*2-1, n*2, n*2, n*2)
	}))
	defer srv.Close()

	client := NewClient(StaticTokenSource("test-token"),
		WithBaseURL(srv.URL),
		WithRateLimit(10000),
		WithRetryConfig(fastRetry()),
		WithMaxRecords(5),
	)
	lists, err := client.ListLists(context.Background())
	require.NoError(t, err)
	assert.Len(t, lists, 5)
}

func TestParseListSize_PriorityOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want int
	}{
		{
			name: "v1 metaData wins over additionalProperties",
			body: `{"list":{"metaData":{"size":120},"additionalProperties":{"hs_list_size":"999"}}}`,
			want: 120,
		},
		{
			name: "v3 additionalProperties string size",
			body: `{"list":{"additionalProperties":{"hs_list_size":"345"}}}`,
			want: 345,
		},
		{
			name: "plain size field",
			body: `{"list":{"size":9}}`,
			want: 9,
		},
		{
			name: "top-level metaData",
			body: `{"metaData":{"size":77}}`,
			want: 77,
		},
		{
			name: "numeric zero is a valid size",
			body: `{"list":{"metaData":{"size":0}}}`,
			want: 0,
		},
		{
			name: "no known field",
			body: `{"list":{"name":"Newsletter"}}`,
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseListSize([]byte(tc.body)))
		})
	}
}
