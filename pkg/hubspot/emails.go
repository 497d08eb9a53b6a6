package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListMarketingEmails returns up to limit marketing emails, most recently
// updated first. A limit of 0 uses the API default page size.
func (c *httpClient) ListMarketingEmails(ctx context.Context, limit int) ([]MarketingEmail, error) {
	maxRecords := c.maxRecords
	if limit > 0 {
		maxRecords = limit
	}

	type rawEmail struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Subject     string `json:"subject"`
		PreviewText string `json:"previewText"`
		State       string `json:"state"`
		From        struct {
			FromName string `json:"fromName"`
		} `json:"from"`
	}

	return collectPages(ctx, "list marketing emails", maxRecords, func(ctx context.Context, after string) (page[MarketingEmail], error) {
		q := url.Values{
			"limit": {strconv.Itoa(min(100, maxRecords))},
			"sort":  {"-updatedAt"},
		}
		if after != "" {
			q.Set("after", after)
		}

		var resp struct {
			Results []rawEmail  `json:"results"`
			Paging  *pagingInfo `json:"paging,omitempty"`
		}
		if err := c.do(ctx, "list marketing emails", http.MethodGet, "/marketing/v3/emails", q, nil, &resp); err != nil {
			return page[MarketingEmail]{}, err
		}

		emails := make([]MarketingEmail, 0, len(resp.Results))
		for _, e := range resp.Results {
			emails = append(emails, MarketingEmail{
				ID:          e.ID,
				Name:        e.Name,
				Subject:     e.Subject,
				PreviewText: e.PreviewText,
				FromName:    e.From.FromName,
				State:       e.State,
			})
		}
		next := ""
		if resp.Paging != nil {
			next = resp.Paging.Next.After
		}
		return page[MarketingEmail]{Results: emails, After: next}, nil
	})
}
