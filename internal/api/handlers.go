package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ampli-network/ampli/internal/domain"
)

// handleSubmitTask accepts a task for async execution (202 on admit).
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req domain.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", domain.ErrValidation))
		return
	}
	req.Tenant = tenantOf(r, req.Tenant)
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	acc, err := s.orch.SubmitTask(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acc)
}

// handleGetTask returns a task's lifecycle state and, once settled,
// its result.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, result, ok := s.orch.GetTask(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{
				"code":    "not_found",
				"message": "unknown task " + id,
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":   task,
		"result": result,
	})
}

// handleSubmitCompetition accepts a self-compete run (202 on admit).
func (s *Server) handleSubmitCompetition(w http.ResponseWriter, r *http.Request) {
	var req domain.CompetitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", domain.ErrValidation))
		return
	}
	req.Tenant = tenantOf(r, req.Tenant)
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	acc, err := s.orch.SubmitCompetition(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acc)
}

// handleGetCompetition returns a competition's state and, once settled,
// the champion and variant scores.
func (s *Server) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	comp, result, err := s.orch.GetCompetition(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"competition": comp,
		"result":      result,
	})
}

// handleStatus serves the engine-wide snapshot: budget burn, cost
// allocation, queue depths, breaker states, rollout percentages.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

// handleHealth serves liveness plus the latest periodic check results.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := http.StatusOK
	overall := "ok"
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": s.checker.Statuses(),
	})
}
