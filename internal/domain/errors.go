package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Admission errors — returned synchronously before enqueue, never retried.
	ErrValidation         = errors.New("request failed structural validation")
	ErrMissingTenant      = errors.New("Tenant-ID header is required")
	ErrMarginGuardrail    = errors.New("forecast cost breaches tenant margin guardrail")
	ErrBudgetExhausted    = errors.New("error budget exhausted — admission refused")
	ErrFeatureUnavailable = errors.New("tenant not rolled into this capability")
	ErrDuplicateInFlight  = errors.New("duplicate request still processing — retry shortly")

	// Queue back-pressure errors
	ErrBackPressureSoft   = errors.New("back-pressure: soft limit — low-priority tasks rejected")
	ErrBackPressureMedium = errors.New("back-pressure: medium limit — only urgent accepted")
	ErrBackPressureHard   = errors.New("back-pressure: hard limit — all tasks rejected")

	// Circuit breaker errors
	ErrCircuitOpen         = errors.New("circuit breaker is open — collaborator unavailable")
	ErrCollaboratorTimeout = errors.New("collaborator call timed out")

	// Competition errors
	ErrNoChampion          = errors.New("no champion — every variant run failed")
	ErrCompetitionNotFound = errors.New("competition not found")
)
