package report

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
	"github.com/sells-group/kpi-report-cli/internal/store"
	"github.com/sells-group/kpi-report-cli/pkg/analytics"
	"github.com/sells-group/kpi-report-cli/pkg/hubspot"
)

// Options tunes generation behavior.
type Options struct {
	// Pipelines restricts deal metrics to these pipeline ids; empty means all.
	Pipelines []string
	// SearchDelay is the pause between sequential per-quarter search queries.
	SearchDelay time.Duration
	// MaxSourceWorkers caps how many source fetches run concurrently during
	// the fan-out phase. Zero or negative means no limit.
	MaxSourceWorkers int
	// Timeout bounds one whole generation request. Zero disables it.
	Timeout time.Duration
}

// Request describes one report-generation call.
type Request struct {
	Year        int
	Title       string
	Subtitle    string
	FocusAreas  []string
	Terminology []string
}

// Engine runs the aggregation pipeline. All fetched data is request-scoped;
// nothing is shared between concurrent generations except the CRM token
// source.
type Engine struct {
	crm        hubspot.Client
	analytics  analytics.Client // nil when not connected
	propertyID string
	store      store.Store
	narrative  Generator
	opts       Options
}

// NewEngine wires the report engine. analyticsClient may be nil; the session
// and traffic metrics then degrade to zero with a status note.
func NewEngine(crm hubspot.Client, analyticsClient analytics.Client, propertyID string, st store.Store, narrative Generator, opts Options) *Engine {
	return &Engine{
		crm:        crm,
		analytics:  analyticsClient,
		propertyID: propertyID,
		store:      st,
		narrative:  narrative,
		opts:       opts,
	}
}

// Generate runs the full pipeline: fan out independent CRM fetches, run the
// deliberately sequential per-quarter loops, join the dependent aggregators,
// merge goals, request the narrative, and persist the snapshot. CRM failures
// are fatal; optional sources degrade to zero plus a status note. Nothing is
// written to the store until every step has succeeded, so cancellation never
// leaves a partial report behind.
func (e *Engine) Generate(ctx context.Context, req Request) (*model.Report, error) {
	if req.Year <= 0 {
		return nil, eris.New("report: year is required")
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	timings := NewTimings()

	// Independent sources fetched concurrently.
	var (
		deals        []model.Deal
		contacts     []model.Contact
		companies    []model.Company
		owners       []model.Owner
		pipelines    []model.Pipeline
		trackedForms []model.TrackedForm
		trackedLists []model.TrackedList
		goals        []model.Goal
		projections  map[string]int
	)

	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxSourceWorkers > 0 {
		g.SetLimit(e.opts.MaxSourceWorkers)
	}
	g.Go(func() error {
		defer timings.Track("deals")()
		var err error
		deals, err = e.crm.ListDeals(gctx)
		timings.Count("deals", len(deals))
		return err
	})
	g.Go(func() error {
		defer timings.Track("contacts")()
		var err error
		contacts, err = e.crm.ListContacts(gctx)
		timings.Count("contacts", len(contacts))
		return err
	})
	g.Go(func() error {
		defer timings.Track("companies")()
		var err error
		companies, err = e.crm.ListCompanies(gctx)
		timings.Count("companies", len(companies))
		return err
	})
	g.Go(func() error {
		defer timings.Track("owners")()
		var err error
		owners, err = e.crm.ListOwners(gctx)
		return err
	})
	g.Go(func() error {
		defer timings.Track("pipelines")()
		var err error
		pipelines, err = e.crm.ListDealPipelines(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if trackedForms, err = e.store.ListTrackedForms(gctx); err != nil {
			return err
		}
		if trackedLists, err = e.store.ListTrackedLists(gctx); err != nil {
			return err
		}
		if goals, err = e.store.ListGoals(gctx, req.Year); err != nil {
			return err
		}
		projections, err = e.store.ListProjections(gctx, req.Year)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "report: fetch sources")
	}

	ref := NewRefData(owners, pipelines)
	scoped := FilterDeals(deals, e.opts.Pipelines)
	enrichDeals(scoped, ref)

	numbers := model.VerifiedNumbers{
		Year:      req.Year,
		Pipelines: e.opts.Pipelines,
	}

	numbers.NewDeals, numbers.NewDealValue = DealsByQuarter(deals, req.Year, e.opts.Pipelines)
	numbers.NewCompanies = companiesByQuarter(companies, req.Year)
	numbers.Lifecycle = LifecycleBecameByQuarter(contacts, req.Year)
	numbers.CurrentStages = CurrentStageCounts(contacts)
	numbers.StageBreakdown = StageBreakdown(scoped, ref)
	numbers.OwnerBreakdown = OwnerBreakdown(scoped, ref)

	// Intentionally sequential: per-quarter search queries with delays.
	stop := timings.Track("contact_counts")
	counts, err := ContactsByQuarter(ctx, e.crm, req.Year, e.opts.SearchDelay)
	stop()
	if err != nil {
		return nil, eris.Wrap(err, "report: contact counts")
	}
	numbers.NewContacts = counts

	if e.analytics == nil || e.propertyID == "" {
		numbers.SessionsStatus = "analytics not connected"
		numbers.TrafficStatus = "analytics not connected"
	} else {
		stop := timings.Track("sessions")
		numbers.WebSessions, numbers.SessionsStatus = SessionsByQuarter(ctx, e.analytics, e.propertyID, req.Year)
		stop()

		yearStart := time.Date(req.Year, 1, 1, 0, 0, 0, 0, time.UTC)
		channels, err := e.analytics.SessionsByChannel(ctx, e.propertyID, yearStart, yearStart.AddDate(1, 0, 0))
		if err != nil {
			zap.L().Warn("channel traffic unavailable", zap.Error(err))
			numbers.TrafficStatus = "channel traffic unavailable: " + err.Error()
		} else {
			for _, c := range channels {
				numbers.ChannelTraffic = append(numbers.ChannelTraffic, model.ChannelMetric(c))
			}
		}
	}

	// Tracked forms, sequential over the submissions API.
	stop = timings.Track("form_submissions")
	for _, f := range trackedForms {
		fc, err := FormSubmissionsByQuarter(ctx, e.crm, f.GUID, req.Year)
		if err != nil {
			return nil, eris.Wrapf(err, "report: form submissions %s", f.GUID)
		}
		numbers.FormSubmissions = append(numbers.FormSubmissions, model.FormMetric{
			GUID: f.GUID, Name: f.Name, Counts: fc,
		})
	}
	stop()

	// Tracked lists are supplementary: a failed size lookup degrades to zero.
	for _, l := range trackedLists {
		size, err := e.crm.ListSize(ctx, l.ListID)
		if err != nil {
			zap.L().Warn("list size unavailable",
				zap.String("list_id", l.ListID),
				zap.Error(err))
			size = 0
		}
		numbers.ListSizes = append(numbers.ListSizes, model.ListMetric{
			ListID: l.ListID, Name: l.Name, Size: size,
		})
	}

	// MQL/SQL joins need both the deals and the contact lifecycle data.
	stop = timings.Track("associations")
	assoc, err := e.crm.DealContactAssociations(ctx, dealIDs(scoped))
	stop()
	if err != nil {
		return nil, eris.Wrap(err, "report: deal-contact associations")
	}
	byID := contactsByID(contacts)
	numbers.MQLDeals, numbers.MQLDealValue = QualifiedDealsByQuarter(scoped, assoc, byID, model.StageMarketingQualifiedLead, req.Year)
	numbers.SQLDeals, numbers.SQLDealValue = QualifiedDealsByQuarter(scoped, assoc, byID, model.StageSalesQualifiedLead, req.Year)

	idx := NewGoalIndex(goals, projections)
	pipelineActuals := pipelineActualRows(deals, pipelines, goals, req.Year)

	insights, err := e.narrative.Generate(ctx, numbers, req.FocusAreas, req.Terminology)
	if err != nil {
		return nil, eris.Wrap(err, "report: narrative generation")
	}

	rep := Assemble(req.Title, req.Subtitle, numbers, pipelineActuals, idx, insights)
	if err := e.store.CreateReport(ctx, rep); err != nil {
		return nil, eris.Wrap(err, "report: persist")
	}

	timings.Log(req.Year)
	return rep, nil
}

// enrichDeals resolves owner and stage display fields in place.
func enrichDeals(deals []model.Deal, ref *RefData) {
	for i := range deals {
		deals[i].OwnerName = ref.OwnerName(deals[i].OwnerID)
		if deals[i].StageLabel == "" {
			deals[i].StageLabel = ref.Stage(deals[i].StageID).Label
		}
	}
}

func companiesByQuarter(companies []model.Company, year int) quarter.Counts {
	var counts quarter.Counts
	for _, c := range companies {
		if q := quarter.Bucket(c.CreatedAt, year); q != quarter.None {
			counts.Add(q, 1)
		}
	}
	return counts
}

func dealIDs(deals []model.Deal) []string {
	ids := make([]string, len(deals))
	for i, d := range deals {
		ids[i] = d.ID
	}
	return ids
}

func contactsByID(contacts []model.Contact) map[string]model.Contact {
	out := make(map[string]model.Contact, len(contacts))
	for _, c := range contacts {
		out[c.ID] = c
	}
	return out
}

// pipelineActualRows computes deals-by-quarter for each pipeline that has a
// stored pipeline-scoped goal, so those goal rows join against the
// pipeline's own deals rather than the blended total.
func pipelineActualRows(deals []model.Deal, pipelines []model.Pipeline, goals []model.Goal, year int) []PipelineActual {
	labels := make(map[string]string, len(pipelines))
	for _, p := range pipelines {
		labels[p.ID] = p.Label
	}

	var out []PipelineActual
	seen := make(map[string]bool)
	for _, g := range goals {
		if g.Kind != model.GoalKindPipeline || seen[g.TargetID] {
			continue
		}
		seen[g.TargetID] = true
		counts, _ := DealsByQuarter(deals, year, []string{g.TargetID})
		label := labels[g.TargetID]
		if label == "" {
			label = g.TargetID
		}
		out = append(out, PipelineActual{ID: g.TargetID, Label: label, Counts: counts})
	}
	return out
}
