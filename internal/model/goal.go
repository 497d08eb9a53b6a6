package model

import "time"

// GoalKind scopes what a goal's TargetID refers to.
type GoalKind string

const (
	GoalKindMetric   GoalKind = "metric"
	GoalKindForm     GoalKind = "form"
	GoalKindPipeline GoalKind = "pipeline"
)

// Metric identifiers used as Goal.TargetID for GoalKindMetric.
const (
	MetricNewDeals     = "new_deals"
	MetricNewContacts  = "new_contacts"
	MetricNewCompanies = "new_companies"
	MetricWebSessions  = "web_sessions"
)

// Goal is a user-entered quarterly target. One row exists per
// (kind, target, year); quarterly fields are independently overwritable via
// upsert. ValueCount/ValueAmount form the optional value-based sub-goal used
// by pipeline-scoped goals.
type Goal struct {
	Kind        GoalKind  `json:"kind"`
	TargetID    string    `json:"target_id"`
	Year        int       `json:"year"`
	Q1          int       `json:"q1"`
	Q2          int       `json:"q2"`
	Q3          int       `json:"q3"`
	Q4          int       `json:"q4"`
	ValueCount  int       `json:"value_count,omitempty"`
	ValueAmount float64   `json:"value_amount,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QuarterlyTotal returns the sum of the four quarterly targets. When a goal
// exists this is the year-end target; a separately stored annual number is
// never used.
func (g Goal) QuarterlyTotal() int {
	return g.Q1 + g.Q2 + g.Q3 + g.Q4
}

// TrackedForm is a persisted reference to a CRM form whose submissions are
// queried live at report time, never cached.
type TrackedForm struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// TrackedList is a persisted reference to a CRM contact list whose
// membership is queried live at report time.
type TrackedList struct {
	ListID string `json:"list_id"`
	Name   string `json:"name"`
}
