package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS connections (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL UNIQUE,
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    DATETIME,
	external_id   TEXT NOT NULL DEFAULT '',
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS goals (
	kind         TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	year         INTEGER NOT NULL,
	q1           INTEGER NOT NULL DEFAULT 0,
	q2           INTEGER NOT NULL DEFAULT 0,
	q3           INTEGER NOT NULL DEFAULT 0,
	q4           INTEGER NOT NULL DEFAULT 0,
	value_count  INTEGER NOT NULL DEFAULT 0,
	value_amount REAL NOT NULL DEFAULT 0,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (kind, target_id, year)
);

CREATE TABLE IF NOT EXISTS projections (
	target_id TEXT NOT NULL,
	year      INTEGER NOT NULL,
	value     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (target_id, year)
);

CREATE TABLE IF NOT EXISTS tracked_forms (
	guid TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracked_lists (
	list_id TEXT PRIMARY KEY,
	name    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	subtitle   TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_goals_year ON goals(year);
CREATE INDEX IF NOT EXISTS idx_reports_year ON reports(year);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetConnection(ctx context.Context, provider model.Provider) (*model.Connection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, provider, access_token, refresh_token, expires_at, external_id, updated_at
		 FROM connections WHERE provider = ?`, string(provider))

	var conn model.Connection
	var expiresAt sql.NullTime
	err := row.Scan(&conn.ID, &conn.Provider, &conn.AccessToken, &conn.RefreshToken, &expiresAt, &conn.ExternalID, &conn.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get connection %s", provider)
	}
	if expiresAt.Valid {
		conn.ExpiresAt = expiresAt.Time.UTC()
	}
	return &conn, nil
}

func (s *SQLiteStore) SaveConnection(ctx context.Context, conn model.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (id, provider, access_token, refresh_token, expires_at, external_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			external_id = excluded.external_id,
			updated_at = excluded.updated_at`,
		conn.ID, string(conn.Provider), conn.AccessToken, conn.RefreshToken,
		nullTime(conn.ExpiresAt), conn.ExternalID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save connection %s", conn.Provider)
}

func (s *SQLiteStore) UpdateConnectionToken(ctx context.Context, provider model.Provider, accessToken string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET access_token = ?, expires_at = ?, updated_at = ? WHERE provider = ?`,
		accessToken, expiresAt.UTC(), time.Now().UTC(), string(provider),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update connection token %s", provider)
	}
	return checkRowsAffected(res, "connection", string(provider))
}

func (s *SQLiteStore) UpsertGoal(ctx context.Context, g model.Goal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, target_id, year) DO UPDATE SET
			q1 = excluded.q1, q2 = excluded.q2, q3 = excluded.q3, q4 = excluded.q4,
			value_count = excluded.value_count, value_amount = excluded.value_amount,
			updated_at = excluded.updated_at`,
		string(g.Kind), g.TargetID, g.Year, g.Q1, g.Q2, g.Q3, g.Q4,
		g.ValueCount, g.ValueAmount, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert goal %s/%s/%d", g.Kind, g.TargetID, g.Year)
}

func (s *SQLiteStore) GetGoal(ctx context.Context, kind model.GoalKind, targetID string, year int) (*model.Goal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at
		 FROM goals WHERE kind = ? AND target_id = ? AND year = ?`,
		string(kind), targetID, year)

	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get goal %s/%s/%d", kind, targetID, year)
	}
	return g, nil
}

func (s *SQLiteStore) ListGoals(ctx context.Context, year int) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at
		 FROM goals WHERE year = ? ORDER BY kind, target_id`, year)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list goals %d", year)
	}
	defer rows.Close() //nolint:errcheck

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan goal")
		}
		goals = append(goals, *g)
	}
	return goals, eris.Wrap(rows.Err(), "sqlite: iterate goals")
}

func (s *SQLiteStore) SaveProjection(ctx context.Context, targetID string, year, value int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projections (target_id, year, value) VALUES (?, ?, ?)
		 ON CONFLICT(target_id, year) DO UPDATE SET value = excluded.value`,
		targetID, year, value,
	)
	return eris.Wrapf(err, "sqlite: save projection %s/%d", targetID, year)
}

func (s *SQLiteStore) ListProjections(ctx context.Context, year int) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, value FROM projections WHERE year = ?`, year)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list projections %d", year)
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var value int
		if err := rows.Scan(&id, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan projection")
		}
		out[id] = value
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate projections")
}

func (s *SQLiteStore) AddTrackedForm(ctx context.Context, f model.TrackedForm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_forms (guid, name) VALUES (?, ?)
		 ON CONFLICT(guid) DO UPDATE SET name = excluded.name`,
		f.GUID, f.Name,
	)
	return eris.Wrapf(err, "sqlite: add tracked form %s", f.GUID)
}

func (s *SQLiteStore) ListTrackedForms(ctx context.Context) ([]model.TrackedForm, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT guid, name FROM tracked_forms ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tracked forms")
	}
	defer rows.Close() //nolint:errcheck

	var forms []model.TrackedForm
	for rows.Next() {
		var f model.TrackedForm
		if err := rows.Scan(&f.GUID, &f.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tracked form")
		}
		forms = append(forms, f)
	}
	return forms, eris.Wrap(rows.Err(), "sqlite: iterate tracked forms")
}

func (s *SQLiteStore) RemoveTrackedForm(ctx context.Context, guid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_forms WHERE guid = ?`, guid)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove tracked form %s", guid)
	}
	return checkRowsAffected(res, "tracked form", guid)
}

func (s *SQLiteStore) AddTrackedList(ctx context.Context, l model.TrackedList) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracked_lists (list_id, name) VALUES (?, ?)
		 ON CONFLICT(list_id) DO UPDATE SET name = excluded.name`,
		l.ListID, l.Name,
	)
	return eris.Wrapf(err, "sqlite: add tracked list %s", l.ListID)
}

func (s *SQLiteStore) ListTrackedLists(ctx context.Context) ([]model.TrackedList, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT list_id, name FROM tracked_lists ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tracked lists")
	}
	defer rows.Close() //nolint:errcheck

	var lists []model.TrackedList
	for rows.Next() {
		var l model.TrackedList
		if err := rows.Scan(&l.ListID, &l.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tracked list")
		}
		lists = append(lists, l)
	}
	return lists, eris.Wrap(rows.Err(), "sqlite: iterate tracked lists")
}

func (s *SQLiteStore) RemoveTrackedList(ctx context.Context, listID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracked_lists WHERE list_id = ?`, listID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove tracked list %s", listID)
	}
	return checkRowsAffected(res, "tracked list", listID)
}

// reportPayload is the JSON blob stored per report row. Everything except
// the row-level columns lives here so reports stay immutable snapshots.
type reportPayload struct {
	Numbers  model.VerifiedNumbers `json:"numbers"`
	KPITable []model.KPIRow        `json:"kpi_table"`
	Insights model.Insights        `json:"insights"`
}

func (s *SQLiteStore) CreateReport(ctx context.Context, r *model.Report) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(reportPayload{
		Numbers:  r.Numbers,
		KPITable: r.KPITable,
		Insights: r.Insights,
	})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, title, subtitle, year, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Subtitle, r.Year, string(payload), r.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert report %s", r.ID)
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, subtitle, year, payload, created_at FROM reports WHERE id = ?`, id)

	var r model.Report
	var payload string
	err := row.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Year, &payload, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: report %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}

	var p reportPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal report payload %s", id)
	}
	r.Numbers = p.Numbers
	r.KPITable = p.KPITable
	r.Insights = p.Insights
	return &r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, title, subtitle, year, payload, created_at FROM reports`
	var args []any
	if filter.Year > 0 {
		query += ` WHERE year = ?`
		args = append(args, filter.Year)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var payload string
		if err := rows.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Year, &payload, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var p reportPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal report payload %s", r.ID)
		}
		r.Numbers = p.Numbers
		r.KPITable = p.KPITable
		r.Insights = p.Insights
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

type goalScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row goalScanner) (*model.Goal, error) {
	var g model.Goal
	var kind string
	err := row.Scan(&kind, &g.TargetID, &g.Year, &g.Q1, &g.Q2, &g.Q3, &g.Q4, &g.ValueCount, &g.ValueAmount, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Kind = model.GoalKind(kind)
	return &g, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
