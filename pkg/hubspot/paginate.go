package hubspot

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/resilience"
)

// page is one page of a cursor-paginated listing. An empty After means the
// listing is exhausted.
type page[T any] struct {
	Results []T
	After   string
}

// collectPages follows an opaque cursor until it is absent or maxRecords is
// reached. Each page fetch is already retried with backoff by the caller's
// fetch function; when retries for a page are exhausted on a rate limit the
// loop stops and returns what it has, so one throttled page never fails a
// whole report. The cursor always resumes from the last successful page;
// nothing restarts from the beginning. All other errors propagate.
func collectPages[T any](ctx context.Context, op string, maxRecords int, fetch func(ctx context.Context, after string) (page[T], error)) ([]T, error) {
	var all []T
	after := ""
	for {
		p, err := fetch(ctx, after)
		if err != nil {
			if resilience.IsRateLimited(err) {
				zap.L().Warn("hubspot: rate-limit retries exhausted, returning partial results",
					zap.String("operation", op),
					zap.Int("records", len(all)),
					zap.Error(err),
				)
				return all, nil
			}
			return nil, err
		}

		all = append(all, p.Results...)
		if len(all) >= maxRecords {
			zap.L().Warn("hubspot: pagination safety cap reached, results truncated",
				zap.String("operation", op),
				zap.Int("cap", maxRecords),
			)
			return all[:maxRecords], nil
		}

		if p.After == "" {
			return all, nil
		}
		after = p.After
	}
}
