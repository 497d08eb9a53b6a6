package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-report-cli/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS connections (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	provider      TEXT NOT NULL UNIQUE,
	access_token  TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMPTZ,
	external_id   TEXT NOT NULL DEFAULT '',
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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
	value_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	title      TEXT NOT NULL,
	subtitle   TEXT NOT NULL DEFAULT '',
	year       INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_goals_year ON goals(year);
CREATE INDEX IF NOT EXISTS idx_reports_year ON reports(year);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetConnection(ctx context.Context, provider model.Provider) (*model.Connection, error) {
	var conn model.Connection
	var expiresAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, provider, access_token, refresh_token, expires_at, external_id, updated_at
		 FROM connections WHERE provider = $1`,
		string(provider),
	).Scan(&conn.ID, &conn.Provider, &conn.AccessToken, &conn.RefreshToken, &expiresAt, &conn.ExternalID, &conn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get connection %s", provider)
	}
	if expiresAt != nil {
		conn.ExpiresAt = expiresAt.UTC()
	}
	return &conn, nil
}

func (s *PostgresStore) SaveConnection(ctx context.Context, conn model.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO connections (id, provider, access_token, refresh_token, expires_at, external_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider) DO UPDATE SET
			access_token = $3, refresh_token = $4, expires_at = $5, external_id = $6, updated_at = $7`,
		conn.ID, string(conn.Provider), conn.AccessToken, conn.RefreshToken,
		nullTime(conn.ExpiresAt), conn.ExternalID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save connection %s", conn.Provider)
}

func (s *PostgresStore) UpdateConnectionToken(ctx context.Context, provider model.Provider, accessToken string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE connections SET access_token = $1, expires_at = $2, updated_at = $3 WHERE provider = $4`,
		accessToken, expiresAt.UTC(), time.Now().UTC(), string(provider),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update connection token %s", provider)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: connection %s", provider)
	}
	return nil
}

func (s *PostgresStore) UpsertGoal(ctx context.Context, g model.Goal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goals (kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (kind, target_id, year) DO UPDATE SET
			q1 = $4, q2 = $5, q3 = $6, q4 = $7, value_count = $8, value_amount = $9, updated_at = $10`,
		string(g.Kind), g.TargetID, g.Year, g.Q1, g.Q2, g.Q3, g.Q4,
		g.ValueCount, g.ValueAmount, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert goal %s/%s/%d", g.Kind, g.TargetID, g.Year)
}

func (s *PostgresStore) GetGoal(ctx context.Context, kind model.GoalKind, targetID string, year int) (*model.Goal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at
		 FROM goals WHERE kind = $1 AND target_id = $2 AND year = $3`,
		string(kind), targetID, year)

	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get goal %s/%s/%d", kind, targetID, year)
	}
	return g, nil
}

func (s *PostgresStore) ListGoals(ctx context.Context, year int) ([]model.Goal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, target_id, year, q1, q2, q3, q4, value_count, value_amount, updated_at
		 FROM goals WHERE year = $1 ORDER BY kind, target_id`, year)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list goals %d", year)
	}
	defer rows.Close()

	var goals []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan goal")
		}
		goals = append(goals, *g)
	}
	return goals, eris.Wrap(rows.Err(), "postgres: iterate goals")
}

func (s *PostgresStore) SaveProjection(ctx context.Context, targetID string, year, value int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projections (target_id, year, value) VALUES ($1, $2, $3)
		 ON CONFLICT (target_id, year) DO UPDATE SET value = $3`,
		targetID, year, value,
	)
	return eris.Wrapf(err, "postgres: save projection %s/%d", targetID, year)
}

func (s *PostgresStore) ListProjections(ctx context.Context, year int) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, value FROM projections WHERE year = $1`, year)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list projections %d", year)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var value int
		if err := rows.Scan(&id, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan projection")
		}
		out[id] = value
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate projections")
}

func (s *PostgresStore) AddTrackedForm(ctx context.Context, f model.TrackedForm) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracked_forms (guid, name) VALUES ($1, $2)
		 ON CONFLICT (guid) DO UPDATE SET name = $2`,
		f.GUID, f.Name,
	)
	return eris.Wrapf(err, "postgres: add tracked form %s", f.GUID)
}

func (s *PostgresStore) ListTrackedForms(ctx context.Context) ([]model.TrackedForm, error) {
	rows, err := s.pool.Query(ctx, `SELECT guid, name FROM tracked_forms ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tracked forms")
	}
	defer rows.Close()

	var forms []model.TrackedForm
	for rows.Next() {
		var f model.TrackedForm
		if err := rows.Scan(&f.GUID, &f.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tracked form")
		}
		forms = append(forms, f)
	}
	return forms, eris.Wrap(rows.Err(), "postgres: iterate tracked forms")
}

func (s *PostgresStore) RemoveTrackedForm(ctx context.Context, guid string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_forms WHERE guid = $1`, guid)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove tracked form %s", guid)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: tracked form %s", guid)
	}
	return nil
}

func (s *PostgresStore) AddTrackedList(ctx context.Context, l model.TrackedList) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tracked_lists (list_id, name) VALUES ($1, $2)
		 ON CONFLICT (list_id) DO UPDATE SET name = $2`,
		l.ListID, l.Name,
	)
	return eris.Wrapf(err, "postgres: add tracked list %s", l.ListID)
}

func (s *PostgresStore) ListTrackedLists(ctx context.Context) ([]model.TrackedList, error) {
	rows, err := s.pool.Query(ctx, `SELECT list_id, name FROM tracked_lists ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tracked lists")
	}
	defer rows.Close()

	var lists []model.TrackedList
	for rows.Next() {
		var l model.TrackedList
		if err := rows.Scan(&l.ListID, &l.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tracked list")
		}
		lists = append(lists, l)
	}
	return lists, eris.Wrap(rows.Err(), "postgres: iterate tracked lists")
}

func (s *PostgresStore) RemoveTrackedList(ctx context.Context, listID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tracked_lists WHERE list_id = $1`, listID)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove tracked list %s", listID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: tracked list %s", listID)
	}
	return nil
}

func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
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
		return eris.Wrap(err, "postgres: marshal report payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, title, subtitle, year, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Title, r.Subtitle, r.Year, payload, r.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert report %s", r.ID)
}

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	var r model.Report
	var payload []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, title, subtitle, year, payload, created_at FROM reports WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.Title, &r.Subtitle, &r.Year, &payload, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: report %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}

	var p reportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal report payload %s", id)
	}
	r.Numbers = p.Numbers
	r.KPITable = p.KPITable
	r.Insights = p.Insights
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := `SELECT id, title, subtitle, year, payload, created_at FROM reports WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Year > 0 {
		query += fmt.Sprintf(` AND year = $%d`, argIdx)
		args = append(args, filter.Year)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var payload []byte
		if err := rows.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Year, &payload, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		var p reportPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal report payload %s", r.ID)
		}
		r.Numbers = p.Numbers
		r.KPITable = p.KPITable
		r.Insights = p.Insights
		reports = append(reports, r)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: iterate reports")
}
