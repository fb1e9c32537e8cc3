// Package api exposes the HTTP interface for the scrape service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/config"
	"github.com/Bai-ee/Agent-cy/internal/discovery"
	"github.com/Bai-ee/Agent-cy/internal/dispatcher"
	"github.com/Bai-ee/Agent-cy/internal/metrics"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// SyncRunner executes a job's URLs inline for the synchronous endpoint.
type SyncRunner interface {
	ProcessURLs(ctx context.Context, job scrape.Job) []scrape.PageResult
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobStore   scrape.JobStore
	dispatcher *dispatcher.Dispatcher
	runner     SyncRunner
	idGen      scrape.IDGenerator
	clock      scrape.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore scrape.JobStore,
	dispatch *dispatcher.Dispatcher,
	runner SyncRunner,
	idGen scrape.IDGenerator,
	clock scrape.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobStore:   jobStore,
		dispatcher: dispatch,
		runner:     runner,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.ServerTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/scrapes", func(r chi.Router) {
			r.Post("/", s.submitScrape)
			r.Post("/sync", s.runScrapeSync)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Get("/results", s.getJobResults)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready; downstream checks can hang
	// a request, so keep this cheap.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.buildJob(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.enqueueJob(r.Context(), job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"urls":   job.URLs,
	}, s.logger)
}

func (s *Server) runScrapeSync(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.writeError(w, http.StatusServiceUnavailable, "synchronous execution is not enabled")
		return
	}
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, err := s.buildJob(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create job: %v", err))
		return
	}
	if err := s.jobStore.UpdateJobStatus(
		r.Context(), job.ID, scrape.JobStatusRunning, "", scrape.JobCounters{},
	); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("start job: %v", err))
		return
	}

	results := s.runner.ProcessURLs(r.Context(), job)
	counters := scrape.JobCounters{Results: len(results)}
	status := scrape.JobStatusCompleted
	errText := ""
	for _, res := range results {
		if res.Success {
			counters.Succeeded++
		}
		if err := s.jobStore.RecordResult(r.Context(), res); err != nil {
			status = scrape.JobStatusFailed
			errText = fmt.Sprintf("record result %d: %v", res.Index, err)
			break
		}
	}
	if err := s.jobStore.UpdateJobStatus(r.Context(), job.ID, status, errText, counters); err != nil {
		s.logger.Error("sync job status update failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	writeJSON(w, http.StatusOK, scrape.JobResult{Job: job, Results: results}, s.logger)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job}, s.logger)
}

func (s *Server) getJobResults(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	results, err := s.jobStore.ListResults(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch job results")
		return
	}
	writeJSON(w, http.StatusOK, scrape.JobResult{Job: job, Results: results}, s.logger)
}

// buildJob validates the request and resolves it into a queued Job. Exactly
// one of url, urls or query must be provided.
func (s *Server) buildJob(req scrapeRequest) (scrape.Job, error) {
	provided := 0
	if req.URL != "" {
		provided++
	}
	if len(req.URLs) > 0 {
		provided++
	}
	if req.Query != "" {
		provided++
	}
	if provided != 1 {
		return scrape.Job{}, errors.New("exactly one of url, urls or query is required")
	}

	urls := req.URLs
	if req.URL != "" {
		urls = []string{req.URL}
	}
	if req.Query != "" {
		maxResults := s.cfg.Discovery.MaxResults
		urls = discovery.Discover(req.Query, maxResults)
		if len(urls) == 0 {
			return scrape.Job{}, errors.New("query produced no URLs")
		}
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		return scrape.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := scrape.Job{
		ID:        jobID,
		TaskID:    req.TaskID,
		URLs:      urls,
		Keywords:  req.Keywords,
		Status:    scrape.JobStatusQueued,
		Submitted: s.clock.Now(),
	}
	if req.Options != nil {
		job.Options = scrape.JobOptions{
			MaxSummaryChars: req.Options.MaxSummaryChars,
			Concurrency:     req.Options.Concurrency,
		}
		if req.Options.RenderEnabled != nil {
			job.Options.RenderEnabled = *req.Options.RenderEnabled
			job.Options.RenderEnabledProvided = true
		}
	}
	return job, nil
}

func (s *Server) enqueueJob(ctx context.Context, job scrape.Job) error {
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	item := scrape.QueueItem{
		JobID:     job.ID,
		Submitted: job.Submitted.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

type scrapeRequest struct {
	URL      string         `json:"url"`
	URLs     []string       `json:"urls"`
	Query    string         `json:"query"`
	Keywords []string       `json:"keywords"`
	TaskID   string         `json:"task_id"`
	Options  *scrapeOptions `json:"options"`
}

type scrapeOptions struct {
	RenderEnabled   *bool `json:"render_enabled"`
	MaxSummaryChars int   `json:"max_summary_chars"`
	Concurrency     int   `json:"concurrency"`
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeJSON(w, http.StatusInternalServerError,
						map[string]string{"error": "internal server error"}, logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized"}, zap.NewNop())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg}, s.logger)
}
