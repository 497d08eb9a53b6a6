package model

import (
	"time"

	"github.com/sells-group/kpi-report-cli/internal/quarter"
)

// VerifiedNumbers is the aggregation pipeline's output: every value in it is
// server-computed from CRM or analytics data. The narrative generator only
// ever consumes this structure as text; nothing in it is generator-produced.
type VerifiedNumbers struct {
	Year int `json:"year"`

	NewDeals     quarter.Counts  `json:"new_deals"`
	NewDealValue quarter.Amounts `json:"new_deal_value"`
	// Pipelines lists the pipeline ids the deal metrics were filtered to;
	// empty means all pipelines were in scope.
	Pipelines []string `json:"pipelines,omitempty"`

	NewContacts  quarter.Counts `json:"new_contacts"`
	NewCompanies quarter.Counts `json:"new_companies"`

	WebSessions quarter.Counts `json:"web_sessions"`
	// SessionsStatus is a human-readable note set when the analytics source
	// produced no usable data; never hidden as a silent success.
	SessionsStatus string `json:"sessions_status,omitempty"`

	FormSubmissions []FormMetric      `json:"form_submissions,omitempty"`
	ListSizes       []ListMetric      `json:"list_sizes,omitempty"`
	Lifecycle       []LifecycleMetric `json:"lifecycle"`
	CurrentStages   []StageCount      `json:"current_stages"`

	MQLDeals     quarter.Counts  `json:"mql_deals"`
	MQLDealValue quarter.Amounts `json:"mql_deal_value"`
	SQLDeals     quarter.Counts  `json:"sql_deals"`
	SQLDealValue quarter.Amounts `json:"sql_deal_value"`

	StageBreakdown []StageMetric   `json:"stage_breakdown"`
	OwnerBreakdown []OwnerMetric   `json:"owner_breakdown"`
	ChannelTraffic []ChannelMetric `json:"channel_traffic,omitempty"`
	TrafficStatus  string          `json:"traffic_status,omitempty"`
}

// FormMetric is the quarterly submission counts for one tracked form.
type FormMetric struct {
	GUID   string         `json:"guid"`
	Name   string         `json:"name"`
	Counts quarter.Counts `json:"counts"`
}

// ListMetric is the live size of one tracked list at report time.
type ListMetric struct {
	ListID string `json:"list_id"`
	Name   string `json:"name"`
	Size   int    `json:"size"`
}

// LifecycleMetric counts contacts that first entered a stage, bucketed by
// the quarter of the became-stage timestamp.
type LifecycleMetric struct {
	Stage  LifecycleStage `json:"stage"`
	Label  string         `json:"label"`
	Counts quarter.Counts `json:"counts"`
}

// StageCount is a frequency count of contacts' present lifecycle stage.
type StageCount struct {
	Stage LifecycleStage `json:"stage"`
	Label string         `json:"label"`
	Count int            `json:"count"`
}

// StageMetric is a deal count/value breakdown per resolved pipeline stage.
type StageMetric struct {
	StageID     string  `json:"stage_id"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Count       int     `json:"count"`
	Value       float64 `json:"value"`
}

// OwnerMetric is a deal count/value breakdown per resolved owner.
type OwnerMetric struct {
	OwnerID string  `json:"owner_id"`
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Value   float64 `json:"value"`
}

// ChannelMetric is a traffic channel with its session total.
type ChannelMetric struct {
	Channel  string `json:"channel"`
	Sessions int64  `json:"sessions"`
}

// GoalStatus classifies an actual against its goal. Equality is on-target.
type GoalStatus string

const (
	StatusOnTarget GoalStatus = "on_target"
	StatusBehind   GoalStatus = "behind"
	StatusNoGoal   GoalStatus = "no_goal"
)

// KPIRow is one row of the quarterly KPI table: an aggregated actual merged
// with its stored goal (when one exists for the report year).
type KPIRow struct {
	Kind     GoalKind       `json:"kind"`
	TargetID string         `json:"target_id"`
	Label    string         `json:"label"`
	Actual   quarter.Counts `json:"actual"`
	Total    int            `json:"total"`

	Goal   *quarter.Counts `json:"goal,omitempty"`
	Status [4]GoalStatus   `json:"status"`

	// YearTarget is the sum of the four quarterly goals when a goal exists,
	// otherwise the legacy year-end projection (FromProjection true).
	YearTarget     int  `json:"year_target"`
	FromProjection bool `json:"from_projection"`
}

// Insights holds the narrative generator's free-text output. The arrays are
// opaque strings; they are never parsed for further structure.
type Insights struct {
	Revenue         []string `json:"revenue"`
	LeadGen         []string `json:"lead_gen"`
	Recommendations []string `json:"recommendations"`
}

// Report is an immutable persisted snapshot of one generation request. It
// owns deep copies of all aggregated values; refreshing creates a new row.
type Report struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle"`
	Year      int             `json:"year"`
	Numbers   VerifiedNumbers `json:"numbers"`
	KPITable  []KPIRow        `json:"kpi_table"`
	Insights  Insights        `json:"insights"`
	CreatedAt time.Time       `json:"created_at"`
}
