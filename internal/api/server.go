// Package api provides the HTTP surface of the Ampli engine: task and
// self-compete submission, status, health, and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ampli-network/ampli/internal/app/orchestrator"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/health"
)

// Server is the Ampli HTTP API server.
type Server struct {
	orch           *orchestrator.Orchestrator
	checker        *health.Checker
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	return &Server{orch: orch}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealthChecker sets the periodic health checker backing /health.
func (s *Server) SetHealthChecker(c *health.Checker) { s.checker = c }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Post("/tasks", s.handleSubmitTask)
	r.Get("/tasks/{id}", s.handleGetTask)

	r.Post("/self-compete", s.handleSubmitCompetition)
	r.Get("/self-compete/{id}", s.handleGetCompetition)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the structured error envelope.
func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": err.Error(),
		},
	})
}

// errorStatus maps a domain error to its HTTP status and wire code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrMissingTenant):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrMarginGuardrail):
		return http.StatusPaymentRequired, "margin_guardrail"
	case errors.Is(err, domain.ErrFeatureUnavailable):
		return http.StatusNotFound, "feature_unavailable"
	case errors.Is(err, domain.ErrCompetitionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicateInFlight):
		return http.StatusConflict, "duplicate_in_flight"
	case errors.Is(err, domain.ErrBudgetExhausted):
		return http.StatusServiceUnavailable, "budget_exhausted"
	case errors.Is(err, domain.ErrBackPressureSoft),
		errors.Is(err, domain.ErrBackPressureMedium),
		errors.Is(err, domain.ErrBackPressureHard):
		return http.StatusServiceUnavailable, "back_pressure"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// tenantOf resolves the request tenant: the Tenant-ID header wins over
// the body field.
func tenantOf(r *http.Request, body string) string {
	if h := r.Header.Get("Tenant-ID"); h != "" {
		return h
	}
	return body
}
