package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
	"github.com/sells-group/kpi-report-cli/pkg/anthropic"
)

type fakeAnthropicClient struct {
	response string
	err      error
	lastReq  anthropic.MessageRequest
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.response}},
	}, nil
}

func (f *fakeAnthropicClient) CreateBatch(context.Context, anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAnthropicClient) GetBatch(context.Context, string) (*anthropic.BatchResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAnthropicClient) GetBatchResults(context.Context, string) (anthropic.BatchResultIterator, error) {
	return nil, errors.New("not implemented")
}

func TestAnthropicGenerator_Generate(t *testing.T) {
	t.Parallel()

	client := &fakeAnthropicClient{
		response: `{"revenue":["Q4 was the strongest quarter."],"lead_gen":["Contacts grew steadily."],"recommendations":["Invest more in Q1 campaigns."]}`,
	}
	gen := NewAnthropicGenerator(client, "claude-sonnet-4-5-20250929")

	numbers := model.VerifiedNumbers{Year: 2025, NewDeals: quarter.Counts{Q4: 9}}
	insights, err := gen.Generate(context.Background(), numbers, []string{"pipeline velocity"}, []string{"SQO"})
	require.NoError(t, err)
	assert.Len(t, insights.Revenue, 1)
	assert.Len(t, insights.LeadGen, 1)
	assert.Len(t, insights.Recommendations, 1)

	// The prompt carries the verified-number restatement and user context.
	require.Len(t, client.lastReq.Messages, 1)
	assert.Contains(t, client.lastReq.Messages[0].Content, "New deals")
	assert.Contains(t, client.lastReq.Messages[0].Content, "pipeline velocity")
	assert.Contains(t, client.lastReq.Messages[0].Content, "SQO")
	require.NotEmpty(t, client.lastReq.System)
}

func TestAnthropicGenerator_FencedJSON(t *testing.T) {
	t.Parallel()

	client := &fakeAnthropicClient{
		response: "```json\n{\"revenue\":[\"ok\"],\"lead_gen\":[],\"recommendations\":[]}\n```",
	}
	gen := NewAnthropicGenerator(client, "m")

	insights, err := gen.Generate(context.Background(), model.VerifiedNumbers{Year: 2025}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, insights.Revenue)
}

func TestAnthropicGenerator_APIFailure(t *testing.T) {
	t.Parallel()

	gen := NewAnthropicGenerator(&fakeAnthropicClient{err: errors.New("overloaded")}, "m")
	_, err := gen.Generate(context.Background(), model.VerifiedNumbers{Year: 2025}, nil, nil)
	require.Error(t, err)
}

func TestParseInsights_Invalid(t *testing.T) {
	t.Parallel()

	_, err := parseInsights("not json at all")
	require.Error(t, err)

	_, err = parseInsights(`{"revenue":[],"lead_gen":[],"recommendations":[]}`)
	require.Error(t, err, "all-empty response rejected")
}

func TestCleanJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"Here you go: {\"a\":1} hope that helps", `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, cleanJSON(tc.in))
	}
}

func TestSummary_IncludesStatusNotes(t *testing.T) {
	t.Parallel()

	n := model.VerifiedNumbers{
		Year:           2025,
		NewDeals:       quarter.Counts{Q1: 4, Q2: 6},
		SessionsStatus: "analytics not connected",
		Lifecycle: []model.LifecycleMetric{
			{Stage: model.StageLead, Label: "Lead", Counts: quarter.Counts{Q1: 2}},
			{Stage: model.StageCustomer, Label: "Customer"},
		},
	}

	s := Summary(n)
	assert.Contains(t, s, "New deals: Q1=4 Q2=6 Q3=0 Q4=0 total=10")
	assert.Contains(t, s, "analytics not connected")
	assert.Contains(t, s, "Lead")
	assert.NotContains(t, s, "Customer: Q1", "zero rows omitted")
}
