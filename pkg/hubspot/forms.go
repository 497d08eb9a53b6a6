package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

func (c *httpClient) ListForms(ctx context.Context) ([]model.TrackedForm, error) {
	type rawForm struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	return collectPages(ctx, "list forms", c.maxRecords, func(ctx context.Context, after string) (page[model.TrackedForm], error) {
		q := url.Values{"limit": {"100"}}
		if after != "" {
			q.Set("after", after)
		}

		var resp struct {
			Results []rawForm   `json:"results"`
			Paging  *pagingInfo `json:"paging,omitempty"`
		}
		if err := c.do(ctx, "list forms", http.MethodGet, "/marketing/v3/forms", q, nil, &resp); err != nil {
			return page[model.TrackedForm]{}, err
		}

		forms := make([]model.TrackedForm, 0, len(resp.Results))
		for _, f := range resp.Results {
			forms = append(forms, model.TrackedForm{GUID: f.ID, Name: f.Name})
		}
		next := ""
		if resp.Paging != nil {
			next = resp.Paging.Next.After
		}
		return page[model.TrackedForm]{Results: forms, After: next}, nil
	})
}

// FormSubmissions fetches one page of a form's submission history. HubSpot
// returns submissions newest-first; that ordering is a precondition for the
// aggregator's early exit once it sees a submission older than the target
// year.
func (c *httpClient) FormSubmissions(ctx context.Context, formGUID, after string) (*SubmissionPage, error) {
	q := url.Values{"limit": {"50"}}
	if after != "" {
		q.Set("after", after)
	}

	var resp struct {
		Results []struct {
			SubmittedAt int64  `json:"submittedAt"`
			PageURL     string `json:"pageUrl"`
		} `json:"results"`
		Paging *pagingInfo `json:"paging,omitempty"`
	}
	err := c.do(ctx, "form submissions", http.MethodGet,
		"/form-integrations/v1/submissions/forms/"+url.PathEscape(formGUID), q, nil, &resp)
	if err != nil {
		return nil, err
	}

	out := &SubmissionPage{}
	for _, r := range resp.Results {
		out.Submissions = append(out.Submissions, FormSubmission{
			SubmittedAt: time.UnixMilli(r.SubmittedAt).UTC(),
			PageURL:     r.PageURL,
		})
	}
	if resp.Paging != nil {
		out.After = resp.Paging.Next.After
	}
	return out, nil
}
