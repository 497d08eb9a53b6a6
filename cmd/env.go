package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/proofread"
	"github.com/sells-group/kpi-report-cli/internal/report"
	"github.com/sells-group/kpi-report-cli/internal/store"
	"github.com/sells-group/kpi-report-cli/pkg/analytics"
	"github.com/sells-group/kpi-report-cli/pkg/anthropic"
	"github.com/sells-group/kpi-report-cli/pkg/hubspot"
)

// env holds the wired clients a command needs. Fields are populated lazily
// by the init helpers; analytics stays nil when no account is connected.
type env struct {
	store      store.Store
	crm        hubspot.Client
	analytics  analytics.Client
	propertyID string
	llm        anthropic.Client
}

func (e *env) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("closing store", zap.Error(err))
		}
	}
}

// initEnv validates config for the given mode and wires the store plus the
// external clients that mode needs.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	e := &env{store: st}

	if mode == "migrate" || mode == "store" {
		return e, nil
	}

	e.crm, err = newCRMClient(ctx, st)
	if err != nil {
		e.Close()
		return nil, err
	}
	if mode == "crm" {
		return e, nil
	}
	e.llm = anthropic.NewClient(cfg.Anthropic.Key)

	if mode != "proofread" {
		e.analytics, e.propertyID = newAnalyticsClient(ctx, st)
	}

	return e, nil
}

// openStore opens the configured backend and applies migrations. Migrations
// are idempotent, so every command path gets a usable schema.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newCRMClient builds the HubSpot client. A configured private-app token
// wins; otherwise the stored OAuth connection drives a caching token source
// whose refreshes are persisted back to the store.
func newCRMClient(ctx context.Context, st store.Store) (hubspot.Client, error) {
	opts := []hubspot.Option{
		hubspot.WithBaseURL(cfg.HubSpot.BaseURL),
		hubspot.WithRateLimit(cfg.HubSpot.RateLimit),
		hubspot.WithMaxRecords(cfg.HubSpot.MaxRecords),
	}

	if cfg.HubSpot.AccessToken != "" {
		return hubspot.NewClient(hubspot.StaticTokenSource(cfg.HubSpot.AccessToken), opts...), nil
	}

	conn, err := st.GetConnection(ctx, model.ProviderHubSpot)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, eris.New("no hubspot connection: run `kpi-cli connect hubspot` or set KPI_HUBSPOT_ACCESS_TOKEN")
	}

	refresh := hubspot.NewOAuthRefresher(nil, "", cfg.HubSpot.ClientID, cfg.HubSpot.ClientSecret, conn.RefreshToken)
	ts := hubspot.NewCachingTokenSource(
		hubspot.Token{AccessToken: conn.AccessToken, ExpiresAt: conn.ExpiresAt},
		refresh,
		hubspot.WithPersist(func(ctx context.Context, tok hubspot.Token) error {
			return st.UpdateConnectionToken(ctx, model.ProviderHubSpot, tok.AccessToken, tok.ExpiresAt)
		}),
	)
	return hubspot.NewClient(ts, opts...), nil
}

// newAnalyticsClient builds the analytics client when credentials exist.
// Returns nil when nothing is connected; session metrics then degrade to
// zero with a status note instead of failing the report.
func newAnalyticsClient(ctx context.Context, st store.Store) (analytics.Client, string) {
	opts := []analytics.Option{analytics.WithBaseURL(cfg.Analytics.BaseURL)}

	if cfg.Analytics.AccessToken != "" && cfg.Analytics.PropertyID != "" {
		return analytics.NewClient(analytics.StaticToken(cfg.Analytics.AccessToken), opts...), cfg.Analytics.PropertyID
	}

	conn, err := st.GetConnection(ctx, model.ProviderAnalytics)
	if err != nil {
		zap.L().Warn("loading analytics connection", zap.Error(err))
		return nil, ""
	}
	if conn == nil || conn.AccessToken == "" {
		return nil, ""
	}
	propertyID := cfg.Analytics.PropertyID
	if propertyID == "" {
		propertyID = conn.ExternalID
	}
	return analytics.NewClient(analytics.StaticToken(conn.AccessToken), opts...), propertyID
}

func newReportEngine(e *env) *report.Engine {
	gen := report.NewAnthropicGenerator(e.llm, cfg.Anthropic.Model)
	return report.NewEngine(e.crm, e.analytics, e.propertyID, e.store, gen, report.Options{
		Pipelines:        cfg.Report.Pipelines,
		SearchDelay:      time.Duration(cfg.Report.SearchDelayMS) * time.Millisecond,
		MaxSourceWorkers: cfg.Report.MaxSourceWorkers,
		Timeout:          time.Duration(cfg.Report.TimeoutSecs) * time.Second,
	})
}

func newReviewer(e *env) *proofread.Reviewer {
	return proofread.NewReviewer(e.crm, e.llm, proofread.Options{
		EmailLimit:  cfg.Proofread.EmailLimit,
		Model:       cfg.Anthropic.HaikuModel,
		PollTimeout: time.Duration(cfg.Proofread.PollTimeoutMins) * time.Minute,
	})
}
