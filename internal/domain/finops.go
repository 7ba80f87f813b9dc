package domain

import "time"

// ─── FinOps Types ───────────────────────────────────────────────────────────
// Cost forecasts are computed per request and attached to the audit trail.
// They are never persisted beyond the usage ledger.

// FinOpsTags annotate a forecast for cost attribution.
type FinOpsTags struct {
	Tenant    string `json:"tenant"`
	Kind      string `json:"kind"` // "task" or "competition"
	TaskType  string `json:"task_type,omitempty"`
	Platforms int    `json:"platforms"`
	Priority  string `json:"priority"`
}

// CostForecast is a deterministic pre-execution cost estimate in microdollars.
type CostForecast struct {
	Tenant    string     `json:"tenant"`
	CostMicro int64      `json:"cost_micro"`
	Tags      FinOpsTags `json:"tags"`
}

// UsageEvent is a fire-and-forget billing ledger entry.
type UsageEvent struct {
	Tenant    string     `json:"tenant"`
	RefID     string     `json:"ref_id"` // task or competition ID
	Kind      string     `json:"kind"`
	CostMicro int64      `json:"cost_micro"`
	Tags      FinOpsTags `json:"tags"`
	Timestamp time.Time  `json:"timestamp"`
}
