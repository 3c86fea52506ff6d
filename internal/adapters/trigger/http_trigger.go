package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inboxkit/mail-triage/internal/core"
	"go.uber.org/zap"
)

// Runner is a start/stop lifecycle shared by the long-running adapters.
type Runner interface {
	Start() error
	Stop(ctx context.Context) error
}

// HTTPTrigger exposes the maintenance jobs and the suggestion feed over
// HTTP. Job endpoints run synchronously and return the job result as
// JSON.
type HTTPTrigger struct {
	server     *http.Server
	reassessor *core.ReassessmentService
	retrier    *core.RetryService
	actions    *core.ActionEngine
	store      core.Store
	logger     *zap.Logger
}

// NewHTTPTrigger creates an HTTP trigger listening on addr
func NewHTTPTrigger(
	addr string,
	reassessor *core.ReassessmentService,
	retrier *core.RetryService,
	actions *core.ActionEngine,
	store core.Store,
	logger *zap.Logger,
) *HTTPTrigger {
	t := &HTTPTrigger{
		reassessor: reassessor,
		retrier:    retrier,
		actions:    actions,
		store:      store,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", t.handleHealth)
	r.Post("/v1/jobs/reassess", t.handleReassess)
	r.Post("/v1/jobs/retry", t.handleRetry)
	r.Get("/v1/users/{userID}/suggestions", t.handleSuggestions)

	t.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return t
}

// Start begins serving. It blocks until the server stops.
func (t *HTTPTrigger) Start() error {
	t.logger.Info("Starting HTTP trigger", zap.String("addr", t.server.Addr))
	if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (t *HTTPTrigger) Stop(ctx context.Context) error {
	t.logger.Info("Stopping HTTP trigger")
	return t.server.Shutdown(ctx)
}

func (t *HTTPTrigger) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReassess runs the batch reassessment job. With a user_id query
// parameter it reassesses that user only; otherwise it walks every
// active user.
func (t *HTTPTrigger) handleReassess(w http.ResponseWriter, r *http.Request) {
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		result := t.reassessor.ReassessForUser(r.Context(), userID)
		writeJSON(w, http.StatusOK, result)
		return
	}

	results, err := t.reassessor.ReassessAllUsers(r.Context())
	if err != nil {
		t.logger.Error("Reassessment run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleRetry runs the failed-analysis retry job
func (t *HTTPTrigger) handleRetry(w http.ResponseWriter, r *http.Request) {
	result := t.retrier.RetryFailedAnalyses(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// handleSuggestions generates the suggested-action feed for a user
func (t *HTTPTrigger) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	summaries, err := t.store.CategorySummaries(r.Context(), userID)
	if err != nil {
		t.logger.Error("Failed to load category summaries",
			zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load category summaries")
		return
	}
	insights, err := t.store.RelationshipInsights(r.Context(), userID)
	if err != nil {
		t.logger.Error("Failed to load relationship insights",
			zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load relationship insights")
		return
	}

	actions := t.actions.GenerateActions(summaries, insights)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"actions": actions,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
