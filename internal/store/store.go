// Package store persists connections, goals, tracked forms/lists, legacy
// projections, and generated reports behind a driver-agnostic interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// ErrNotFound wraps every missing-row error so callers can map it to a 404
// with errors.Is regardless of driver.
var ErrNotFound = errors.New("not found")

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	Year  int `json:"year,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Store defines the persistence interface for the reporting service.
type Store interface {
	// Connections. One row per provider; Get returns nil when absent.
	GetConnection(ctx context.Context, provider model.Provider) (*model.Connection, error)
	SaveConnection(ctx context.Context, conn model.Connection) error
	// UpdateConnectionToken rewrites just the access token and expiry, so a
	// refresh triggered by one request is visible to all others.
	UpdateConnectionToken(ctx context.Context, provider model.Provider, accessToken string, expiresAt time.Time) error

	// Goals. Upsert semantics: one row per (kind, target, year).
	UpsertGoal(ctx context.Context, g model.Goal) error
	GetGoal(ctx context.Context, kind model.GoalKind, targetID string, year int) (*model.Goal, error)
	ListGoals(ctx context.Context, year int) ([]model.Goal, error)

	// Legacy year-end projections, keyed by metric id + year. Used by the
	// goal join only when no quarterly goal exists for a row.
	SaveProjection(ctx context.Context, targetID string, year, value int) error
	ListProjections(ctx context.Context, year int) (map[string]int, error)

	// Tracked forms and lists: user-chosen references resolved live at
	// report time.
	AddTrackedForm(ctx context.Context, f model.TrackedForm) error
	ListTrackedForms(ctx context.Context) ([]model.TrackedForm, error)
	RemoveTrackedForm(ctx context.Context, guid string) error
	AddTrackedList(ctx context.Context, l model.TrackedList) error
	ListTrackedLists(ctx context.Context) ([]model.TrackedList, error)
	RemoveTrackedList(ctx context.Context, listID string) error

	// Reports are immutable snapshots: insert and read only.
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
