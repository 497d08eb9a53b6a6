package report

import (
	"fmt"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
)

// PipelineActual is one pipeline's own deals-by-quarter, used for
// pipeline-scoped goal rows.
type PipelineActual struct {
	ID     string
	Label  string
	Counts quarter.Counts
}

// Assemble builds the final report structure. Every numeric field comes from
// an aggregator output or the goal join; the insight arrays are stored as
// opaque text. Assembly is stateless and fully determined by its inputs.
func Assemble(title, subtitle string, numbers model.VerifiedNumbers, pipelineActuals []PipelineActual, idx *GoalIndex, insights model.Insights) *model.Report {
	if title == "" {
		title = fmt.Sprintf("%d Marketing KPI Report", numbers.Year)
	}

	table := []model.KPIRow{
		idx.JoinRow(model.GoalKindMetric, model.MetricNewDeals, "New Deals", numbers.NewDeals),
		idx.JoinRow(model.GoalKindMetric, model.MetricNewContacts, "New Contacts", numbers.NewContacts),
		idx.JoinRow(model.GoalKindMetric, model.MetricNewCompanies, "New Companies", numbers.NewCompanies),
		idx.JoinRow(model.GoalKindMetric, model.MetricWebSessions, "Website Sessions", numbers.WebSessions),
	}
	for _, f := range numbers.FormSubmissions {
		table = append(table, idx.JoinRow(model.GoalKindForm, f.GUID, f.Name+" Submissions", f.Counts))
	}
	for _, p := range pipelineActuals {
		table = append(table, idx.JoinRow(model.GoalKindPipeline, p.ID, p.Label+" Deals", p.Counts))
	}

	return &model.Report{
		Title:    title,
		Subtitle: subtitle,
		Year:     numbers.Year,
		Numbers:  numbers,
		KPITable: table,
		Insights: insights,
	}
}
