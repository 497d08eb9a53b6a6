package report

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/pkg/anthropic"
)

// Generator produces the narrative text blocks for a report. The numbers
// passed in are already final; nothing the generator returns is ever parsed
// into a numeric field.
type Generator interface {
	Generate(ctx context.Context, numbers model.VerifiedNumbers, focusAreas, terminology []string) (model.Insights, error)
}

const narrativeSystemPrompt = `You are a marketing analyst writing the narrative section of a quarterly KPI report.

You will receive a plain-text restatement of verified metrics. Write insights grounded ONLY in those numbers. Never invent figures that are not in the input.

Respond with a single JSON object and nothing else:
{
  "revenue": ["2-4 sentences, one insight each, about deal flow and revenue"],
  "lead_gen": ["2-4 sentences about lead generation, lifecycle movement, and traffic"],
  "recommendations": ["2-4 concrete, actionable recommendations"]
}`

// AnthropicGenerator implements Generator against the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator creates a narrative generator using the given model.
func NewAnthropicGenerator(client anthropic.Client, model string) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: model}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, numbers model.VerifiedNumbers, focusAreas, terminology []string) (model.Insights, error) {
	var user strings.Builder
	user.WriteString(Summary(numbers))
	if len(focusAreas) > 0 {
		user.WriteString("\nFocus areas requested by the user: ")
		user.WriteString(strings.Join(focusAreas, "; "))
		user.WriteString("\n")
	}
	if len(terminology) > 0 {
		user.WriteString("\nUse this terminology where applicable: ")
		user.WriteString(strings.Join(terminology, "; "))
		user.WriteString("\n")
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: 2048,
		System:    anthropic.BuildCachedSystemBlocks(narrativeSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: user.String()},
		},
	})
	if err != nil {
		return model.Insights{}, eris.Wrap(err, "narrative: create message")
	}
	resp.Usage.LogCost(g.model, "narrative")

	text := collectText(resp)
	insights, err := parseInsights(text)
	if err != nil {
		return model.Insights{}, err
	}
	return insights, nil
}

// collectText concatenates the text blocks of a response.
func collectText(resp *anthropic.MessageResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func parseInsights(text string) (model.Insights, error) {
	var out model.Insights
	if err := json.Unmarshal([]byte(cleanJSON(text)), &out); err != nil {
		return model.Insights{}, eris.Wrap(err, "narrative: parse insights")
	}
	if len(out.Revenue) == 0 && len(out.LeadGen) == 0 && len(out.Recommendations) == 0 {
		return model.Insights{}, eris.New("narrative: empty insights response")
	}
	return out, nil
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
