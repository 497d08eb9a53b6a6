package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
	"github.com/sells-group/kpi-report-cli/pkg/hubspot"
)

// contactCounter is the slice of the CRM client the contact aggregator needs.
type contactCounter interface {
	CountContactsCreatedBetween(ctx context.Context, start, end time.Time) (int, error)
}

// submissionPager pages through one form's submission history.
type submissionPager interface {
	FormSubmissions(ctx context.Context, formGUID, after string) (*hubspot.SubmissionPage, error)
}

// sessionSource is the slice of the analytics client the session aggregator needs.
type sessionSource interface {
	Sessions(ctx context.Context, propertyID string, start, end time.Time) (int64, error)
}

// DealsByQuarter buckets deals by creation date. When pipelines is non-empty
// the filter is applied before counting so totals reflect only in-scope deals.
func DealsByQuarter(deals []model.Deal, year int, pipelines []string) (quarter.Counts, quarter.Amounts) {
	inScope := func(string) bool { return true }
	if len(pipelines) > 0 {
		set := make(map[string]bool, len(pipelines))
		for _, p := range pipelines {
			set[p] = true
		}
		inScope = func(id string) bool { return set[id] }
	}

	var counts quarter.Counts
	var amounts quarter.Amounts
	for _, d := range deals {
		if !inScope(d.PipelineID) {
			continue
		}
		q := quarter.Bucket(d.CreatedAt, year)
		if q == quarter.None {
			continue
		}
		counts.Add(q, 1)
		amounts.Add(q, d.Amount)
	}
	return counts, amounts
}

// FilterDeals returns only the deals in the selected pipelines; an empty
// selection keeps everything.
func FilterDeals(deals []model.Deal, pipelines []string) []model.Deal {
	if len(pipelines) == 0 {
		return deals
	}
	set := make(map[string]bool, len(pipelines))
	for _, p := range pipelines {
		set[p] = true
	}
	out := make([]model.Deal, 0, len(deals))
	for _, d := range deals {
		if set[d.PipelineID] {
			out = append(out, d)
		}
	}
	return out
}

// ContactsByQuarter counts contacts created in each quarter through one
// API-side search query per quarter. The quarter queries run sequentially
// with a fixed inter-query delay to stay under the CRM's search rate limit;
// a failed quarter gets one retry after a longer delay. This serialization
// is deliberate and must not be parallelized.
func ContactsByQuarter(ctx context.Context, c contactCounter, year int, delay time.Duration) (quarter.Counts, error) {
	var counts quarter.Counts
	for i, q := range quarter.All() {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return counts, ctx.Err()
			case <-time.After(delay):
			}
		}

		start, end := quarter.Range(year, q)
		n, err := c.CountContactsCreatedBetween(ctx, start, end)
		if err != nil {
			zap.L().Warn("contact count failed, retrying once",
				zap.String("quarter", q.String()),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return counts, ctx.Err()
			case <-time.After(4 * delay):
			}
			n, err = c.CountContactsCreatedBetween(ctx, start, end)
			if err != nil {
				return counts, err
			}
		}
		counts.Set(q, n)
	}
	return counts, nil
}

// SessionsByQuarter runs one analytics query per quarter and sums each
// multi-row response to a scalar. Failed quarters count as zero; when every
// quarter is zero the returned status note says why instead of presenting
// the zeros as a silent success.
func SessionsByQuarter(ctx context.Context, src sessionSource, propertyID string, year int) (quarter.Counts, string) {
	var counts quarter.Counts
	var lastErr error
	failures := 0

	for _, q := range quarter.All() {
		start, end := quarter.Range(year, q)
		total, err := src.Sessions(ctx, propertyID, start, end)
		if err != nil {
			zap.L().Warn("session query failed",
				zap.String("quarter", q.String()),
				zap.Error(err))
			failures++
			lastErr = err
			continue
		}
		counts.Set(q, int(total))
	}

	if counts.IsZero() {
		if lastErr != nil {
			return counts, "website session data unavailable: " + lastErr.Error()
		}
		if failures == 0 {
			return counts, "analytics returned zero sessions for every quarter"
		}
	}
	return counts, ""
}

// submissionGracePages bounds how many extra pages are fetched after an
// out-of-order timestamp is seen, defending the newest-first early exit
// against slightly unordered responses.
const submissionGracePages = 2

// FormSubmissionsByQuarter buckets one form's submissions by quarter.
// Precondition: the CRM returns submissions newest-first, which lets the
// loop stop as soon as timestamps fall before the target year. An
// out-of-order timestamp extends pagination by a bounded grace window
// instead of truncating silently.
func FormSubmissionsByQuarter(ctx context.Context, pager submissionPager, formGUID string, year int) (quarter.Counts, error) {
	var counts quarter.Counts
	yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)

	after := ""
	pastYearStart := false
	gracePagesLeft := submissionGracePages

	for {
		page, err := pager.FormSubmissions(ctx, formGUID, after)
		if err != nil {
			return counts, err
		}

		sawInYear := false
		for _, sub := range page.Submissions {
			if sub.SubmittedAt.Before(yearStart) {
				pastYearStart = true
				continue
			}
			q := quarter.Bucket(sub.SubmittedAt, year)
			if q == quarter.None {
				continue
			}
			counts.Add(q, 1)
			sawInYear = true
		}

		if page.After == "" {
			return counts, nil
		}
		if pastYearStart {
			if sawInYear {
				// Out-of-order page: an in-year submission appeared after an
				// older-than-year one. Keep the grace window open.
				gracePagesLeft = submissionGracePages
			} else {
				gracePagesLeft--
			}
			if gracePagesLeft < 0 {
				return counts, nil
			}
		}
		after = page.After
	}
}

// LifecycleBecameByQuarter counts, per stage, contacts whose first entry
// into that stage falls in each quarter of the target year. A contact
// contributes to every stage it has a valid became timestamp for,
// independent of its current stage; empty or zero raw values never count.
func LifecycleBecameByQuarter(contacts []model.Contact, year int) []model.LifecycleMetric {
	stages := model.LifecycleStages()
	metrics := make([]model.LifecycleMetric, len(stages))
	for i, s := range stages {
		metrics[i] = model.LifecycleMetric{Stage: s, Label: s.Label()}
	}

	for _, c := range contacts {
		for i, s := range stages {
			raw := c.BecameValue(s)
			if raw == "" {
				continue
			}
			q := quarter.BucketValue(raw, year)
			if q == quarter.None {
				continue
			}
			metrics[i].Counts.Add(q, 1)
		}
	}
	return metrics
}

// CurrentStageCounts is a plain frequency count over contacts' present
// lifecycle stage, not quarter-bucketed.
func CurrentStageCounts(contacts []model.Contact) []model.StageCount {
	freq := make(map[model.LifecycleStage]int)
	for _, c := range contacts {
		if c.LifecycleStage == "" {
			continue
		}
		freq[model.NormalizeStage(string(c.LifecycleStage))]++
	}

	var out []model.StageCount
	for _, s := range model.LifecycleStages() {
		if n := freq[s]; n > 0 {
			out = append(out, model.StageCount{Stage: s, Label: s.Label(), Count: n})
		}
	}
	return out
}

// QualifiedDealsByQuarter counts deals where at least one associated contact
// first reached the given lifecycle stage during each quarter. The deal is
// the unit of counting: it counts once per quarter even when several of its
// contacts qualify (logical OR across associated contacts). Attribution
// follows the contact's became-stage timing, not the deal's own dates.
func QualifiedDealsByQuarter(
	deals []model.Deal,
	associations map[string][]string,
	contactsByID map[string]model.Contact,
	stage model.LifecycleStage,
	year int,
) (quarter.Counts, quarter.Amounts) {
	var counts quarter.Counts
	var amounts quarter.Amounts

	for _, d := range deals {
		var seen [5]bool // indexed by Quarter; deal counted once per quarter
		for _, contactID := range associations[d.ID] {
			c, ok := contactsByID[contactID]
			if !ok {
				continue
			}
			raw := c.BecameValue(stage)
			if raw == "" {
				continue
			}
			q := quarter.BucketValue(raw, year)
			if q == quarter.None || seen[q] {
				continue
			}
			seen[q] = true
			counts.Add(q, 1)
			amounts.Add(q, d.Amount)
		}
	}
	return counts, amounts
}
