package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

var dealProperties = []string{
	"dealname",
	"amount",
	"dealstage",
	"pipeline",
	"hubspot_owner_id",
	"createdate",
	"closedate",
	"hs_lastmodifieddate",
}

func (c *httpClient) ListDeals(ctx context.Context) ([]model.Deal, error) {
	return collectPages(ctx, "list deals", c.maxRecords, func(ctx context.Context, after string) (page[model.Deal], error) {
		q := url.Values{
			"limit":      {"100"},
			"properties": {strings.Join(dealProperties, ",")},
		}
		if after != "" {
			q.Set("after", after)
		}

		var resp listResponse
		if err := c.do(ctx, "list deals", http.MethodGet, "/crm/v3/objects/deals", q, nil, &resp); err != nil {
			return page[model.Deal]{}, err
		}

		deals := make([]model.Deal, 0, len(resp.Results))
		for _, r := range resp.Results {
			deals = append(deals, model.Deal{
				ID:         r.ID,
				Name:       r.prop("dealname"),
				Amount:     r.propFloat("amount"),
				StageID:    r.prop("dealstage"),
				PipelineID: r.prop("pipeline"),
				OwnerID:    r.prop("hubspot_owner_id"),
				CreatedAt:  r.propTime("createdate"),
				ClosedAt:   r.propTime("closedate"),
				UpdatedAt:  r.propTime("hs_lastmodifieddate"),
			})
		}
		return page[model.Deal]{Results: deals, After: resp.nextAfter()}, nil
	})
}

func (c *httpClient) ListDealPipelines(ctx context.Context) ([]model.Pipeline, error) {
	var resp struct {
		Results []struct {
			ID     string `json:"id"`
			Label  string `json:"label"`
			Stages []struct {
				ID       string `json:"id"`
				Label    string `json:"label"`
				Metadata struct {
					Probability string `json:"probability"`
				} `json:"metadata"`
			} `json:"stages"`
		} `json:"results"`
	}
	if err := c.do(ctx, "list pipelines", http.MethodGet, "/crm/v3/pipelines/deals", nil, nil, &resp); err != nil {
		return nil, err
	}

	pipelines := make([]model.Pipeline, 0, len(resp.Results))
	for _, p := range resp.Results {
		pl := model.Pipeline{ID: p.ID, Label: p.Label}
		for _, s := range p.Stages {
			prob, _ := strconv.ParseFloat(s.Metadata.Probability, 64)
			pl.Stages = append(pl.Stages, model.PipelineStage{
				ID:          s.ID,
				Label:       s.Label,
				Probability: prob,
			})
		}
		pipelines = append(pipelines, pl)
	}
	return pipelines, nil
}

// DealContactAssociations reads deal→contact associations in batches of 100
// (the v4 batch endpoint's input limit).
func (c *httpClient) DealContactAssociations(ctx context.Context, dealIDs []string) (map[string][]string, error) {
	const batchSize = 100
	assoc := make(map[string][]string, len(dealIDs))

	for start := 0; start < len(dealIDs); start += batchSize {
		end := min(start+batchSize, len(dealIDs))

		type input struct {
			ID string `json:"id"`
		}
		req := struct {
			Inputs []input `json:"inputs"`
		}{}
		for _, id := range dealIDs[start:end] {
			req.Inputs = append(req.Inputs, input{ID: id})
		}

		var resp struct {
			Results []struct {
				From struct {
					ID string `json:"id"`
				} `json:"from"`
				To []struct {
					ToObjectID int64 `json:"toObjectId"`
				} `json:"to"`
			} `json:"results"`
		}
		err := c.do(ctx, "deal contact associations", http.MethodPost,
			"/crm/v4/associations/deals/contacts/batch/read", nil, req, &resp)
		if err != nil {
			return nil, eris.Wrap(err, "hubspot: read deal associations")
		}

		for _, r := range resp.Results {
			for _, to := range r.To {
				assoc[r.From.ID] = append(assoc[r.From.ID], strconv.FormatInt(to.ToObjectID, 10))
			}
		}
	}
	return assoc, nil
}
