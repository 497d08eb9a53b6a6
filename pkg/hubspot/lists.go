package hubspot

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// ListLists walks the legacy offset-paged lists search. The same safety cap
// as the cursor-paged listings applies, so an API that keeps answering
// hasMore cannot accumulate unbounded.
func (c *httpClient) ListLists(ctx context.Context) ([]model.TrackedList, error) {
	req := struct {
		Count  int `json:"count"`
		Offset int `json:"offset"`
	}{Count: 250}

	var lists []model.TrackedList
	for {
		var raw []byte
		if err := c.do(ctx, "list lists", http.MethodPost, "/crm/v3/lists/search", nil, req, &raw); err != nil {
			return nil, err
		}

		result := gjson.GetBytes(raw, "lists")
		for _, l := range result.Array() {
			lists = append(lists, model.TrackedList{
				ListID: l.Get("listId").String(),
				Name:   l.Get("name").String(),
			})
		}

		if len(lists) >= c.maxRecords {
			zap.L().Warn("hubspot: pagination safety cap reached, results truncated",
				zap.String("operation", "list lists"),
				zap.Int("cap", c.maxRecords),
			)
			return lists[:c.maxRecords], nil
		}

		if !gjson.GetBytes(raw, "hasMore").Bool() || len(result.Array()) == 0 {
			return lists, nil
		}
		req.Offset = int(gjson.GetBytes(raw, "offset").Int())
	}
}

// ListSize returns the live membership size of a list.
func (c *httpClient) ListSize(ctx context.Context, listID string) (int, error) {
	var raw []byte
	if err := c.do(ctx, "list size", http.MethodGet, "/crm/v3/lists/"+listID, nil, nil, &raw); err != nil {
		return 0, err
	}
	return parseListSize(raw), nil
}

// listSizePaths is the priority order of fields the size has been observed
// under across API versions. The first parseable match wins.
var listSizePaths = []string{
	"list.metaData.size",
	"list.additionalProperties.hs_list_size",
	"list.size",
	"metaData.size",
	"additionalProperties.hs_list_size",
	"size",
}

// parseListSize extracts the list size from a list-detail response body,
// trying each known field location in priority order. Returns 0 when no
// location yields a number.
func parseListSize(body []byte) int {
	for _, path := range listSizePaths {
		v := gjson.GetBytes(body, path)
		if !v.Exists() {
			continue
		}
		if n := v.Int(); n > 0 || v.Type == gjson.Number {
			return int(n)
		}
		// String-typed sizes ("123") parse through Int() too, but guard
		// against non-numeric strings mapping to 0 silently.
		if v.Type == gjson.String && v.String() != "" {
			return int(v.Int())
		}
	}
	return 0
}
