package report

import (
	"sort"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// unassignedOwner is the display fallback for deals with no resolvable owner.
const unassignedOwner = "Unassigned"

// RefData holds the small reference maps fetched once per generation and
// shared by all aggregators. Unresolved ids fall back to sentinels instead
// of failing aggregation.
type RefData struct {
	owners map[string]string
	stages map[string]model.PipelineStage
}

// NewRefData builds the lookup maps from pipeline and owner metadata.
func NewRefData(owners []model.Owner, pipelines []model.Pipeline) *RefData {
	r := &RefData{
		owners: make(map[string]string, len(owners)),
		stages: make(map[string]model.PipelineStage),
	}
	for _, o := range owners {
		r.owners[o.ID] = o.Name()
	}
	for _, p := range pipelines {
		for _, s := range p.Stages {
			r.stages[s.ID] = s
		}
	}
	return r
}

// OwnerName resolves an owner id to a display name.
func (r *RefData) OwnerName(id string) string {
	if id == "" {
		return unassignedOwner
	}
	if name, ok := r.owners[id]; ok && name != "" {
		return name
	}
	return unassignedOwner
}

// Stage resolves a stage id to its metadata, falling back to the raw id as
// label with zero probability.
func (r *RefData) Stage(id string) model.PipelineStage {
	if s, ok := r.stages[id]; ok {
		return s
	}
	return model.PipelineStage{ID: id, Label: id}
}

// StageBreakdown groups deals by resolved pipeline stage, ordered by
// descending total value.
func StageBreakdown(deals []model.Deal, ref *RefData) []model.StageMetric {
	byStage := make(map[string]*model.StageMetric)
	for _, d := range deals {
		m, ok := byStage[d.StageID]
		if !ok {
			s := ref.Stage(d.StageID)
			m = &model.StageMetric{StageID: s.ID, Label: s.Label, Probability: s.Probability}
			byStage[d.StageID] = m
		}
		m.Count++
		m.Value += d.Amount
	}

	out := make([]model.StageMetric, 0, len(byStage))
	for _, m := range byStage {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// OwnerBreakdown groups deals by resolved owner, ordered by descending
// total value.
func OwnerBreakdown(deals []model.Deal, ref *RefData) []model.OwnerMetric {
	byOwner := make(map[string]*model.OwnerMetric)
	for _, d := range deals {
		name := ref.OwnerName(d.OwnerID)
		m, ok := byOwner[name]
		if !ok {
			m = &model.OwnerMetric{OwnerID: d.OwnerID, Name: name}
			byOwner[name] = m
		}
		m.Count++
		m.Value += d.Amount
	}

	out := make([]model.OwnerMetric, 0, len(byOwner))
	for _, m := range byOwner {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
