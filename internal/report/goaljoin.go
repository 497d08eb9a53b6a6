package report

import (
	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/quarter"
)

// GoalIndex looks up stored goals and legacy projections for one report year.
type GoalIndex struct {
	goals       map[goalKey]model.Goal
	projections map[string]int
}

type goalKey struct {
	kind     model.GoalKind
	targetID string
}

// NewGoalIndex builds the lookup from the year's stored goals and legacy
// year-end projections.
func NewGoalIndex(goals []model.Goal, projections map[string]int) *GoalIndex {
	idx := &GoalIndex{
		goals:       make(map[goalKey]model.Goal, len(goals)),
		projections: projections,
	}
	for _, g := range goals {
		idx.goals[goalKey{kind: g.Kind, targetID: g.TargetID}] = g
	}
	return idx
}

// JoinRow merges an aggregated actual with its stored goal, when one exists.
// Equality is on-target. The year target is the sum of the four quarterly
// goals; only when no goal exists does the legacy projection fill in, as an
// annual target (FromProjection true).
func (idx *GoalIndex) JoinRow(kind model.GoalKind, targetID, label string, actual quarter.Counts) model.KPIRow {
	row := model.KPIRow{
		Kind:     kind,
		TargetID: targetID,
		Label:    label,
		Actual:   actual,
		Total:    actual.Total(),
	}

	g, ok := idx.goals[goalKey{kind: kind, targetID: targetID}]
	if !ok {
		for i := range row.Status {
			row.Status[i] = model.StatusNoGoal
		}
		if p, ok := idx.projections[targetID]; ok {
			row.YearTarget = CoerceCount(p)
			row.FromProjection = true
		}
		return row
	}

	goal := quarter.Counts{
		Q1: CoerceCount(g.Q1),
		Q2: CoerceCount(g.Q2),
		Q3: CoerceCount(g.Q3),
		Q4: CoerceCount(g.Q4),
	}
	row.Goal = &goal
	row.YearTarget = goal.Total()

	for i, q := range quarter.All() {
		target := goal.Get(q)
		if target == 0 {
			row.Status[i] = model.StatusNoGoal
			continue
		}
		if actual.Get(q) >= target {
			row.Status[i] = model.StatusOnTarget
		} else {
			row.Status[i] = model.StatusBehind
		}
	}
	return row
}
