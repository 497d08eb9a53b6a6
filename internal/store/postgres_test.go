package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetConnection_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, provider, access_token, refresh_token, expires_at, external_id, updated_at`).
		WithArgs("hubspot").
		WillReturnError(pgx.ErrNoRows)

	conn, err := s.GetConnection(context.Background(), model.ProviderHubSpot)
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetConnection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	expires := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, provider, access_token, refresh_token, expires_at, external_id, updated_at`).
		WithArgs("hubspot").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "provider", "access_token", "refresh_token", "expires_at", "external_id", "updated_at"},
		).AddRow("c-1", "hubspot", "at", "rt", &expires, "portal-42", updated))

	conn, err := s.GetConnection(context.Background(), model.ProviderHubSpot)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "at", conn.AccessToken)
	assert.Equal(t, "portal-42", conn.ExternalID)
	assert.True(t, conn.ExpiresAt.Equal(expires))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveConnection_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO connections .* ON CONFLICT`).
		WithArgs(pgxmock.AnyArg(), "google_analytics", "at", "rt", pgxmock.AnyArg(), "prop-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveConnection(context.Background(), model.Connection{
		Provider:     model.ProviderAnalytics,
		AccessToken:  "at",
		RefreshToken: "rt",
		ExternalID:   "prop-9",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateConnectionToken_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE connections SET access_token`).
		WithArgs("tok", pgxmock.AnyArg(), pgxmock.AnyArg(), "hubspot").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateConnectionToken(context.Background(), model.ProviderHubSpot, "tok", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertGoal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO goals .* ON CONFLICT`).
		WithArgs("metric", "new_deals", 2025, 10, 12, 15, 20, 0, 0.0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertGoal(context.Background(), model.Goal{
		Kind: model.GoalKindMetric, TargetID: "new_deals", Year: 2025,
		Q1: 10, Q2: 12, Q3: 15, Q4: 20,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetGoal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT kind, target_id, year, q1, q2, q3, q4`).
		WithArgs("metric", "new_deals", 2024).
		WillReturnError(pgx.ErrNoRows)

	g, err := s.GetGoal(context.Background(), model.GoalKindMetric, "new_deals", 2024)
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListGoals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	updated := time.Now().UTC()
	mock.ExpectQuery(`SELECT kind, target_id, year, q1, q2, q3, q4`).
		WithArgs(2025).
		WillReturnRows(pgxmock.NewRows(
			[]string{"kind", "target_id", "year", "q1", "q2", "q3", "q4", "value_count", "value_amount", "updated_at"},
		).
			AddRow("metric", "new_deals", 2025, 10, 12, 15, 20, 0, 0.0, updated).
			AddRow("form", "f-1", 2025, 5, 5, 5, 5, 0, 0.0, updated))

	goals, err := s.ListGoals(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, model.GoalKindMetric, goals[0].Kind)
	assert.Equal(t, 57, goals[0].QuarterlyTotal())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProjections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT target_id, value FROM projections`).
		WithArgs(2025).
		WillReturnRows(pgxmock.NewRows([]string{"target_id", "value"}).
			AddRow("new_deals", 80).
			AddRow("web_sessions", 40000))

	got, err := s.ListProjections(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"new_deals": 80, "web_sessions": 40000}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RemoveTrackedForm_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM tracked_forms`).
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.RemoveTrackedForm(context.Background(), "gone")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateReport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reports`).
		WithArgs(pgxmock.AnyArg(), "2025 KPI Report", "", 2025, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &model.Report{Title: "2025 KPI Report", Year: 2025}
	require.NoError(t, s.CreateReport(context.Background(), r))
	assert.NotEmpty(t, r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Now().UTC()
	payload := []byte(`{"numbers":{"year":2025},"kpi_table":[],"insights":{"revenue":["up"]}}`)
	mock.ExpectQuery(`SELECT id, title, subtitle, year, payload, created_at FROM reports`).
		WithArgs("r-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "title", "subtitle", "year", "payload", "created_at"},
		).AddRow("r-1", "t", "s", 2025, payload, created))

	r, err := s.GetReport(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, 2025, r.Numbers.Year)
	assert.Equal(t, []string{"up"}, r.Insights.Revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetReport_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, title, subtitle, year, payload, created_at FROM reports`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetReport(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
