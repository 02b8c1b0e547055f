// Package server exposes the evaluation engine over HTTP: submit a product,
// poll job progress, fetch the aggregated result.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shoplab-ai/shoplab/errors"
	"github.com/shoplab-ai/shoplab/evaluation"
	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/product"
)

const (
	apiName    = "ShopLab API"
	apiVersion = "1.0.0"
)

// Engine runs product evaluations. *evaluation.Coordinator implements it.
type Engine interface {
	Evaluate(ctx context.Context, attrs product.Attributes, onProgress func(map[string]float64)) *evaluation.Outcome
	Roles() []evaluation.Role
}

// Server is the HTTP API over a job table and an evaluation engine.
type Server struct {
	engine Engine
	jobs   *JobStore
	logger *slog.Logger
	server *http.Server
}

type (
	evaluateRequest struct {
		Product product.Attributes `json:"product"`
	}

	agentInfo struct {
		Name        string `json:"name"`
		Emoji       string `json:"emoji"`
		Description string `json:"description"`
	}

	errorResponse struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
		Timestamp  string `json:"timestamp"`
	}
)

// New creates the API server listening on the given port.
func New(engine Engine, port int) *Server {
	s := &Server{
		engine: engine,
		jobs:   NewJobStore(),
		logger: logging.WithComponent("server"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      corsMiddleware(s.Routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the request multiplexer. Exposed for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("POST /api/evaluate", s.handleCreateEvaluation)
	mux.HandleFunc("GET /api/evaluate/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/evaluate/{id}/result", s.handleResult)
	mux.HandleFunc("DELETE /api/evaluate/{id}", s.handleCancel)
	return mux
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":    apiName,
		"version": apiVersion,
		"status":  "running",
		"agents":  len(s.engine.Roles()),
		"endpoints": map[string]string{
			"health":   "/",
			"agents":   "/api/agents",
			"evaluate": "/api/evaluate",
			"status":   "/api/evaluate/{id}/status",
			"result":   "/api/evaluate/{id}/result",
			"cancel":   "/api/evaluate/{id}",
		},
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	roles := s.engine.Roles()
	agents := make([]agentInfo, 0, len(roles))
	for _, role := range roles {
		agents = append(agents, agentInfo{
			Name:        role.Name,
			Emoji:       role.Emoji,
			Description: role.Description,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

func (s *Server) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	if err := req.Product.Validate(); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("%v: %v", errors.ErrInvalidInput, err))
		return
	}

	roles := s.engine.Roles()
	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := s.jobs.Create(req.Product, roleNames, cancel)

	s.logger.Info("evaluation accepted", "job_id", job.ID, "product", req.Product.Name)
	go s.runEvaluation(ctx, job.ID, req.Product)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":      job.ID,
		"status":  StatusPending,
		"message": "Evaluation started successfully",
	})
}

func (s *Server) runEvaluation(ctx context.Context, jobID string, attrs product.Attributes) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("evaluation panicked", "job_id", jobID, "panic", r)
			s.jobs.Fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	s.jobs.SetRunning(jobID)
	outcome := s.engine.Evaluate(ctx, attrs, func(progress map[string]float64) {
		s.jobs.SetProgress(jobID, progress)
	})
	s.jobs.Complete(jobID, outcome)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Evaluation not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":           job.ID,
		"status":       job.Status,
		"progress":     job.Progress,
		"created_at":   job.CreatedAt.Format(time.RFC3339),
		"completed_at": formatCompletedAt(job.CompletedAt),
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "Evaluation not found")
		return
	}

	switch job.Status {
	case StatusPending, StatusRunning:
		s.writeError(w, http.StatusBadRequest, errors.ErrJobNotFinished.Error())
		return
	case StatusFailed:
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Evaluation failed: %s", job.Error))
		return
	case StatusCancelled:
		s.writeError(w, http.StatusBadRequest, "Evaluation was cancelled")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":                     job.ID,
		"status":                 job.Status,
		"overall_score":          job.Result.OverallScore,
		"overall_recommendation": job.Result.OverallRecommendation,
		"agent_results":          job.Result.AgentResults,
		"key_strengths":          job.Result.KeyStrengths,
		"key_concerns":           job.Result.KeyConcerns,
		"confidence":             job.Result.Confidence,
		"completed_at":           formatCompletedAt(job.CompletedAt),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.jobs.Cancel(id); err != nil {
		if stderrors.Is(err, errors.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "Evaluation not found")
		} else {
			s.writeError(w, http.StatusBadRequest, "Can only cancel pending or running evaluations")
		}
		return
	}

	s.logger.Info("evaluation cancelled", "job_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"status":  StatusCancelled,
		"message": "Evaluation cancelled successfully",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, errorResponse{
		Error:      http.StatusText(statusCode),
		Message:    message,
		StatusCode: statusCode,
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func formatCompletedAt(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// corsMiddleware allows browser clients from any origin, matching the
// deployment model of a public demo frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
