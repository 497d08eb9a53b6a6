package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

func contactProperties() []string {
	props := []string{
		"firstname",
		"lastname",
		"email",
		"company",
		"hubspot_owner_id",
		"lifecyclestage",
		"createdate",
	}
	for _, s := range model.LifecycleStages() {
		props = append(props, s.BecameProperty())
	}
	return props
}

func (c *httpClient) ListContacts(ctx context.Context) ([]model.Contact, error) {
	props := strings.Join(contactProperties(), ",")
	return collectPages(ctx, "list contacts", c.maxRecords, func(ctx context.Context, after string) (page[model.Contact], error) {
		q := url.Values{
			"limit":      {"100"},
			"properties": {props},
		}
		if after != "" {
			q.Set("after", after)
		}

		var resp listResponse
		if err := c.do(ctx, "list contacts", http.MethodGet, "/crm/v3/objects/contacts", q, nil, &resp); err != nil {
			return page[model.Contact]{}, err
		}

		contacts := make([]model.Contact, 0, len(resp.Results))
		for _, r := range resp.Results {
			became := make(map[model.LifecycleStage]string, len(model.LifecycleStages()))
			for _, s := range model.LifecycleStages() {
				if v := r.prop(s.BecameProperty()); v != "" {
					became[s] = v
				}
			}
			contacts = append(contacts, model.Contact{
				ID:             r.ID,
				FirstName:      r.prop("firstname"),
				LastName:       r.prop("lastname"),
				Email:          r.prop("email"),
				Company:        r.prop("company"),
				OwnerID:        r.prop("hubspot_owner_id"),
				LifecycleStage: model.NormalizeStage(r.prop("lifecyclestage")),
				Became:         became,
				CreatedAt:      r.propTime("createdate"),
			})
		}
		return page[model.Contact]{Results: contacts, After: resp.nextAfter()}, nil
	})
}

// CountContactsCreatedBetween asks the search endpoint for the total only
// (limit 1), so counting a quarter never pages the whole contact set into
// memory.
func (c *httpClient) CountContactsCreatedBetween(ctx context.Context, start, end time.Time) (int, error) {
	type filter struct {
		PropertyName string `json:"propertyName"`
		Operator     string `json:"operator"`
		Value        string `json:"value,omitempty"`
		HighValue    string `json:"highValue,omitempty"`
	}
	req := struct {
		FilterGroups []struct {
			Filters []filter `json:"filters"`
		} `json:"filterGroups"`
		Limit int `json:"limit"`
	}{
		Limit: 1,
	}
	req.FilterGroups = append(req.FilterGroups, struct {
		Filters []filter `json:"filters"`
	}{
		Filters: []filter{{
			PropertyName: "createdate",
			Operator:     "BETWEEN",
			Value:        strconv.FormatInt(start.UTC().UnixMilli(), 10),
			// BETWEEN is inclusive on both ends; subtract 1ms so the
			// interval stays half-open and boundary contacts are not
			// double-counted across quarters.
			HighValue: strconv.FormatInt(end.UTC().UnixMilli()-1, 10),
		}},
	})

	var resp struct {
		Total int `json:"total"`
	}
	if err := c.do(ctx, "count contacts", http.MethodPost, "/crm/v3/objects/contacts/search", nil, req, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (c *httpClient) ListCompanies(ctx context.Context) ([]model.Company, error) {
	props := strings.Join([]string{
		"name", "domain", "industry", "numberofemployees", "annualrevenue", "lifecyclestage", "createdate",
	}, ",")
	return collectPages(ctx, "list companies", c.maxRecords, func(ctx context.Context, after string) (page[model.Company], error) {
		q := url.Values{
			"limit":      {"100"},
			"properties": {props},
		}
		if after != "" {
			q.Set("after", after)
		}

		var resp listResponse
		if err := c.do(ctx, "list companies", http.MethodGet, "/crm/v3/objects/companies", q, nil, &resp); err != nil {
			return page[model.Company]{}, err
		}

		companies := make([]model.Company, 0, len(resp.Results))
		for _, r := range resp.Results {
			companies = append(companies, model.Company{
				ID:             r.ID,
				Name:           r.prop("name"),
				Domain:         r.prop("domain"),
				Industry:       r.prop("industry"),
				Employees:      r.propInt("numberofemployees"),
				AnnualRevenue:  r.propFloat("annualrevenue"),
				LifecycleStage: model.NormalizeStage(r.prop("lifecyclestage")),
				CreatedAt:      r.propTime("createdate"),
			})
		}
		return page[model.Company]{Results: companies, After: resp.nextAfter()}, nil
	})
}

func (c *httpClient) ListOwners(ctx context.Context) ([]model.Owner, error) {
	type rawOwner struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
	}
	return collectPages(ctx, "list owners", c.maxRecords, func(ctx context.Context, after string) (page[model.Owner], error) {
		q := url.Values{"limit": {"100"}}
		if after != "" {
			q.Set("after", after)
		}

		var resp struct {
			Results []rawOwner  `json:"results"`
			Paging  *pagingInfo `json:"paging,omitempty"`
		}
		if err := c.do(ctx, "list owners", http.MethodGet, "/crm/v3/owners", q, nil, &resp); err != nil {
			return page[model.Owner]{}, err
		}

		owners := make([]model.Owner, 0, len(resp.Results))
		for _, o := range resp.Results {
			owners = append(owners, model.Owner{
				ID:        o.ID,
				FirstName: o.FirstName,
				LastName:  o.LastName,
				Email:     o.Email,
			})
		}
		after = ""
		if resp.Paging != nil {
			after = resp.Paging.Next.After
		}
		return page[model.Owner]{Results: owners, After: after}, nil
	})
}
