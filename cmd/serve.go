package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kpi-report-cli/internal/model"
	"github.com/sells-group/kpi-report-cli/internal/proofread"
	"github.com/sells-group/kpi-report-cli/internal/report"
	"github.com/sells-group/kpi-report-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			store:    env.store,
			engine:   newReportEngine(env),
			reviewer: newReviewer(env),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// reportRunner is the slice of the report engine the API uses.
type reportRunner interface {
	Generate(ctx context.Context, req report.Request) (*model.Report, error)
}

// emailReviewer is the slice of the proofreader the API uses.
type emailReviewer interface {
	Run(ctx context.Context) ([]proofread.EmailReview, error)
}

type apiServer struct {
	store    store.Store
	engine   reportRunner
	reviewer emailReviewer
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/reports", s.handleGenerateReport)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)

		r.Put("/goals", s.handleUpsertGoal)
		r.Get("/goals", s.handleListGoals)
		r.Put("/projections", s.handleSaveProjection)

		r.Get("/forms", s.handleListForms)
		r.Post("/forms", s.handleTrackForm)
		r.Delete("/forms/{guid}", s.handleUntrackForm)

		r.Get("/lists", s.handleListLists)
		r.Post("/lists", s.handleTrackList)
		r.Delete("/lists/{id}", s.handleUntrackList)

		r.Post("/proofread", s.handleProofread)
	})

	return r
}

func (s *apiServer) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year        int      `json:"year"`
		Title       string   `json:"title"`
		Subtitle    string   `json:"subtitle"`
		FocusAreas  []string `json:"focus_areas"`
		Terminology []string `json:"terminology"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Year <= 0 {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}

	rep, err := s.engine.Generate(r.Context(), report.Request{
		Year:        req.Year,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		FocusAreas:  req.FocusAreas,
		Terminology: req.Terminology,
	})
	if err != nil {
		zap.L().Error("report generation failed", zap.Int("year", req.Year), zap.Error(err))
		writeError(w, http.StatusBadGateway, "report generation failed")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *apiServer) handleListReports(w http.ResponseWriter, r *http.Request) {
	filter := store.ReportFilter{
		Year:  report.CoerceCount(r.URL.Query().Get("year")),
		Limit: report.CoerceCount(r.URL.Query().Get("limit")),
	}
	reports, err := s.store.ListReports(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *apiServer) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleUpsertGoal accepts quarterly targets whose values may arrive as
// numbers or numeric strings, the way spreadsheet-sourced payloads do.
func (s *apiServer) handleUpsertGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string  `json:"kind"`
		TargetID    string  `json:"target_id"`
		Year        int     `json:"year"`
		Q1          any     `json:"q1"`
		Q2          any     `json:"q2"`
		Q3          any     `json:"q3"`
		Q4          any     `json:"q4"`
		ValueCount  any     `json:"value_count"`
		ValueAmount float64 `json:"value_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind := model.GoalKind(req.Kind)
	if kind != model.GoalKindMetric && kind != model.GoalKindForm && kind != model.GoalKindPipeline {
		writeError(w, http.StatusBadRequest, "kind must be metric, form, or pipeline")
		return
	}
	if req.TargetID == "" || req.Year <= 0 {
		writeError(w, http.StatusBadRequest, "target_id and year are required")
		return
	}

	g := model.Goal{
		Kind:        kind,
		TargetID:    req.TargetID,
		Year:        req.Year,
		Q1:          report.CoerceCount(req.Q1),
		Q2:          report.CoerceCount(req.Q2),
		Q3:          report.CoerceCount(req.Q3),
		Q4:          report.CoerceCount(req.Q4),
		ValueCount:  report.CoerceCount(req.ValueCount),
		ValueAmount: req.ValueAmount,
	}
	if err := s.store.UpsertGoal(r.Context(), g); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *apiServer) handleListGoals(w http.ResponseWriter, r *http.Request) {
	year := report.CoerceCount(r.URL.Query().Get("year"))
	if year == 0 {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	goals, err := s.store.ListGoals(r.Context(), year)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *apiServer) handleSaveProjection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetID string `json:"target_id"`
		Year     int    `json:"year"`
		Value    any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TargetID == "" || req.Year <= 0 {
		writeError(w, http.StatusBadRequest, "target_id and year are required")
		return
	}
	if err := s.store.SaveProjection(r.Context(), req.TargetID, req.Year, report.CoerceCount(req.Value)); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.store.ListTrackedForms(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, forms)
}

func (s *apiServer) handleTrackForm(w http.ResponseWriter, r *http.Request) {
	var f model.TrackedForm
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if f.GUID == "" {
		writeError(w, http.StatusBadRequest, "guid is required")
		return
	}
	if err := s.store.AddTrackedForm(r.Context(), f); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *apiServer) handleUntrackForm(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveTrackedForm(r.Context(), chi.URLParam(r, "guid")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.ListTrackedLists(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *apiServer) handleTrackList(w http.ResponseWriter, r *http.Request) {
	var l model.TrackedList
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if l.ListID == "" {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return
	}
	if err := s.store.AddTrackedList(r.Context(), l); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *apiServer) handleUntrackList(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveTrackedList(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleProofread(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.reviewer.Run(r.Context())
	if err != nil {
		zap.L().Error("proofread run failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "proofread run failed")
		return
	}
	if reviews == nil {
		reviews = []proofread.EmailReview{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writing response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
