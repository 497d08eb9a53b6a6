// Package proofread runs marketing emails through a rubric-based review
// using the Anthropic Batches API.
package proofread

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/pkg/anthropic"
	"github.com/sells-group/kpi-report-cli/pkg/hubspot"
)

// emailLister is the slice of the CRM client the reviewer needs.
type emailLister interface {
	ListMarketingEmails(ctx context.Context, limit int) ([]hubspot.MarketingEmail, error)
}

// EmailReview is the verdict for one reviewed email.
type EmailReview struct {
	EmailID string   `json:"email_id"`
	Name    string   `json:"name"`
	Verdict string   `json:"verdict"` // "pass" or "needs_work"
	Issues  []string `json:"issues,omitempty"`
}

const rubricPrompt = `You are a marketing copy editor reviewing email campaigns before they ship.

For each email you receive (name, subject line, preview text, sender name), check:
1. Subject line: under 60 characters, no all-caps words, no spam-trigger phrasing.
2. Preview text: present, complements the subject rather than repeating it.
3. Sender name: a real person or recognizable team, not a bare domain.
4. Tone: consistent, no unresolved placeholders like [NAME] or TODO.

Respond with a single JSON object and nothing else:
{"verdict": "pass" | "needs_work", "issues": ["one short sentence per problem found"]}
An email with no problems gets {"verdict":"pass","issues":[]}.`

// Options tunes a review run.
type Options struct {
	// EmailLimit caps how many recent emails are reviewed.
	EmailLimit int
	// Model is the Anthropic model id used for every review.
	Model string
	// PollTimeout bounds how long to wait for the batch to finish.
	PollTimeout time.Duration
}

// Reviewer fetches recent marketing emails and batch-reviews them.
type Reviewer struct {
	crm  emailLister
	llm  anthropic.Client
	opts Options
}

// NewReviewer wires a Reviewer.
func NewReviewer(crm emailLister, llm anthropic.Client, opts Options) *Reviewer {
	if opts.EmailLimit <= 0 {
		opts.EmailLimit = 20
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Minute
	}
	return &Reviewer{crm: crm, llm: llm, opts: opts}
}

// Run fetches the most recent emails, warms the rubric's prompt cache with a
// primer, submits one batch item per email with the shared rubric as a
// cache-controlled system prompt, polls the batch to completion, and collects
// the verdicts. Emails whose individual review failed get a needs_work
// verdict naming the failure, never a silent pass.
func (r *Reviewer) Run(ctx context.Context) ([]EmailReview, error) {
	emails, err := r.crm.ListMarketingEmails(ctx, r.opts.EmailLimit)
	if err != nil {
		return nil, eris.Wrap(err, "proofread: list emails")
	}
	if len(emails) == 0 {
		return nil, nil
	}

	system := anthropic.BuildCachedSystemBlocks(rubricPrompt)
	items := make([]anthropic.BatchRequestItem, 0, len(emails))
	byID := make(map[string]hubspot.MarketingEmail, len(emails))
	for _, e := range emails {
		byID[e.ID] = e
		items = append(items, anthropic.BatchRequestItem{
			CustomID: e.ID,
			Params: anthropic.MessageRequest{
				Model:     r.opts.Model,
				MaxTokens: 1024,
				System:    system,
				Messages: []anthropic.Message{
					{Role: "user", Content: describeEmail(e)},
				},
			},
		})
	}

	// One primer writes the rubric into the prompt cache; the batch items
	// then read it instead of each paying the cache write. A failed primer
	// is not fatal, the batch just runs against a cold cache.
	if primer, err := anthropic.PrimerRequest(ctx, r.llm, items[0].Params); err != nil {
		zap.L().Debug("proofread primer failed", zap.Error(err))
	} else {
		primer.Usage.LogCost(r.opts.Model, "proofread_primer")
	}

	batch, err := r.llm.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return nil, eris.Wrap(err, "proofread: create batch")
	}
	zap.L().Info("proofread batch submitted",
		zap.String("batch_id", batch.ID),
		zap.Int("emails", len(items)))

	if _, err := anthropic.PollBatch(ctx, r.llm, batch.ID,
		anthropic.WithPollInterval(2*time.Second),
		anthropic.WithPollCap(15*time.Second),
		anthropic.WithPollTimeout(r.opts.PollTimeout)); err != nil {
		return nil, eris.Wrap(err, "proofread: poll batch")
	}

	iter, err := r.llm.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return nil, eris.Wrap(err, "proofread: get batch results")
	}
	collected, err := anthropic.CollectBatchResultsDetailed(iter)
	if err != nil {
		return nil, eris.Wrap(err, "proofread: collect batch results")
	}

	failures := make(map[string]string, len(collected.Failures))
	for _, f := range collected.Failures {
		failures[f.CustomID] = f.Type
	}
	var total anthropic.TokenUsage
	for _, resp := range collected.Succeeded {
		total = total.Add(resp.Usage)
	}
	total.LogCost(r.opts.Model, "proofread_batch")

	reviews := make([]EmailReview, 0, len(emails))
	for _, e := range emails {
		review := EmailReview{EmailID: e.ID, Name: e.Name}
		resp, ok := collected.Succeeded[e.ID]
		if !ok {
			review.Verdict = "needs_work"
			if reason, found := failures[e.ID]; found {
				review.Issues = []string{"review " + reason + " before completing"}
			} else {
				review.Issues = []string{"review did not complete"}
			}
			reviews = append(reviews, review)
			continue
		}
		verdict, issues, err := parseReview(resp)
		if err != nil {
			zap.L().Warn("unparseable review",
				zap.String("email_id", e.ID),
				zap.Error(err))
			review.Verdict = "needs_work"
			review.Issues = []string{"review response was unreadable"}
		} else {
			review.Verdict = verdict
			review.Issues = issues
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// describeEmail renders one email for review.
func describeEmail(e hubspot.MarketingEmail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Email name: %s\n", e.Name)
	fmt.Fprintf(&b, "Subject line: %s\n", e.Subject)
	fmt.Fprintf(&b, "Preview text: %s\n", e.PreviewText)
	fmt.Fprintf(&b, "Sender name: %s\n", e.FromName)
	fmt.Fprintf(&b, "State: %s\n", e.State)
	return b.String()
}

func parseReview(resp *anthropic.MessageResponse) (string, []string, error) {
	var text strings.Builder
	for _, block := range resp.Content {
		text.WriteString(block.Text)
	}

	var parsed struct {
		Verdict string   `json:"verdict"`
		Issues  []string `json:"issues"`
	}
	raw := strings.TrimSpace(text.String())
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", nil, eris.Wrap(err, "proofread: parse review")
	}
	if parsed.Verdict != "pass" && parsed.Verdict != "needs_work" {
		return "", nil, eris.Errorf("proofread: unexpected verdict %q", parsed.Verdict)
	}
	return parsed.Verdict, parsed.Issues, nil
}
