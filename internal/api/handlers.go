package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/saltyorg/sdc/internal/blockgate"
	"github.com/saltyorg/sdc/internal/jobs"
	"github.com/saltyorg/sdc/pkg/logger"
	"github.com/saltyorg/sdc/pkg/metrics"
)

// Server represents the API server
type Server struct {
	jobManager *jobs.Manager
	logger     *logger.Logger
	blockGate  *blockgate.Gate
	ready      atomic.Bool
}

// NewServer creates a new API server
func NewServer(jobManager *jobs.Manager, logger *logger.Logger) *Server {
	s := &Server{
		jobManager: jobManager,
		logger:     logger,
	}
	s.blockGate = blockgate.New(logger, func(blocked bool) {
		if blocked {
			metrics.Blocked.Set(1)
		} else {
			metrics.Blocked.Set(0)
		}
	})
	return s
}

// SetReady marks the server ready to answer /ping with 200. The controller
// calls this once the Docker engine has been successfully pinged at startup.
func (s *Server) SetReady() {
	s.ready.Store(true)
}

// Router creates and configures the HTTP router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(s.RecoveryMiddleware)
	r.Use(s.LoggingMiddleware)

	// Main API routes (spec-compliant)
	r.Post("/start", s.HandleStartContainers)
	r.Post("/stop", s.HandleStopContainers)
	r.Get("/ping", s.HandleHealth)

	// Block/unblock routes
	r.Post("/block/{duration}", s.HandleBlock)
	r.Post("/unblock", s.HandleUnblock)

	// Job status route
	r.Get("/job_status/{job_id}", s.HandleGetJobStatus)

	// Prometheus scrape endpoint
	r.Get("/metrics", metrics.Handler().ServeHTTP)

	return r
}

// JobResponse represents a job creation response
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// BlockedResponse is the soft-rejection body returned by /start and /stop
// while the block gate is active.
type BlockedResponse struct {
	Blocked bool   `json:"blocked"`
	Message string `json:"message"`
}

// HandleStartContainers handles POST /start
func (s *Server) HandleStartContainers(w http.ResponseWriter, r *http.Request) {
	if s.blockGate.IsBlocked() {
		s.writeJSON(w, http.StatusOK, BlockedResponse{
			Blocked: true,
			Message: "Operations are currently blocked",
		})
		return
	}

	// Parse query parameters
	timeout := 600 // 10 minutes default
	if timeoutStr := r.URL.Query().Get("timeout"); timeoutStr != "" {
		if parsedTimeout, err := strconv.Atoi(timeoutStr); err == nil {
			timeout = parsedTimeout
		}
	}

	// Create and submit job
	job := jobs.NewJob(jobs.JobTypeStart, timeout, nil)
	if err := s.jobManager.Submit(job); err != nil {
		s.logger.Error("Failed to submit job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to submit job")
		return
	}

	s.logger.Info("Start job created",
		"job_id", job.ID,
		"timeout", timeout)

	s.writeJSON(w, http.StatusOK, JobResponse{
		ID:     job.ID,
		Status: string(job.GetStatus()),
	})
}

// HandleStopContainers handles POST /stop
func (s *Server) HandleStopContainers(w http.ResponseWriter, r *http.Request) {
	if s.blockGate.IsBlocked() {
		s.writeJSON(w, http.StatusOK, BlockedResponse{
			Blocked: true,
			Message: "Operations are currently blocked",
		})
		return
	}

	// Parse timeout query parameter
	timeout := 300 // 5 minutes default
	if timeoutStr := r.URL.Query().Get("timeout"); timeoutStr != "" {
		if parsedTimeout, err := strconv.Atoi(timeoutStr); err == nil {
			timeout = parsedTimeout
		}
	}

	// Parse ignore query parameter (supports both comma-separated and repeated params)
	var ignore []string
	query := r.URL.Query()

	// Handle repeated params: ?ignore=traefik&ignore=nginx
	if ignoreParams := query["ignore"]; len(ignoreParams) > 0 {
		for _, param := range ignoreParams {
			// Also support comma-separated within each param: ?ignore=traefik,nginx
			parts := strings.SplitSeq(param, ",")
			for part := range parts {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					ignore = append(ignore, trimmed)
				}
			}
		}
	}

	// Create and submit job
	job := jobs.NewJob(jobs.JobTypeStop, timeout, ignore)
	if err := s.jobManager.Submit(job); err != nil {
		s.logger.Error("Failed to submit job", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to submit job")
		return
	}

	s.logger.Info("Stop job created",
		"job_id", job.ID,
		"timeout", timeout,
		"ignore", ignore)

	s.writeJSON(w, http.StatusOK, JobResponse{
		ID:     job.ID,
		Status: string(job.GetStatus()),
	})
}

// HandleGetJobStatus handles GET /job_status/{job_id}
func (s *Server) HandleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")

	job, err := s.jobManager.Get(jobID)
	if err != nil {
		s.logger.Debug("Job not found", "job_id", jobID)
		s.writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "not_found",
		})
		return
	}

	// The full job record, not just its status: callers polling this route
	// need Started/Stopped/Skipped/Failed/Error once the job reaches a
	// terminal state.
	s.writeJSON(w, http.StatusOK, job)
}

// HandleHealth handles GET /ping. It returns 503 until the Docker engine
// has been successfully pinged at startup, 200 after.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		s.writeError(w, http.StatusServiceUnavailable, "service initializing")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "pong",
	})
}

// HandleBlock handles POST /block/{duration}
func (s *Server) HandleBlock(w http.ResponseWriter, r *http.Request) {
	// Parse duration from URL parameter (in minutes)
	durationStr := chi.URLParam(r, "duration")
	duration := 10 // Default 10 minutes
	if durationStr != "" {
		if parsedDuration, err := strconv.Atoi(durationStr); err == nil {
			duration = parsedDuration
		}
	}

	s.blockGate.Block(time.Duration(duration) * time.Minute)

	s.logger.Info("Operations are now blocked", "duration_minutes", duration)
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Operations are now blocked for " + strconv.Itoa(duration) + " minutes",
	})
}

// HandleUnblock handles POST /unblock
func (s *Server) HandleUnblock(w http.ResponseWriter, r *http.Request) {
	s.blockGate.Unblock()

	s.logger.Info("Operations are now unblocked")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "Operations are now unblocked",
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", "error", err)
	}
}

// writeError writes an error JSON response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
