// Package slo tracks error-budget burn for admission gating.
//
// Burn rate = consumed budget / allotted budget over the current rolling
// window. Admission is refused once the burn rate reaches 1.0. Window
// rollover resets consumption but not the historical audit counters.
package slo

import (
	"sync"
	"time"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the error-budget tracker.
type Config struct {
	// AllottedBudget is how many failed executions the window tolerates
	// (default 100).
	AllottedBudget int64

	// Window is the rolling budget window (default 24h).
	Window time.Duration

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production SLO defaults.
func DefaultConfig() Config {
	return Config{
		AllottedBudget: 100,
		Window:         24 * time.Hour,
	}
}

// ─── Tracker ────────────────────────────────────────────────────────────────

// Tracker is the process-wide error-budget state. Read by every admission
// check, written only by completed task outcomes. Thread-safe.
type Tracker struct {
	mu          sync.Mutex
	config      Config
	consumed    int64
	windowStart time.Time
	now         func() time.Time

	// Audit counters survive rollover.
	totalFailures  int64
	totalSuccesses int64
	rollovers      int64
}

// NewTracker creates an error-budget tracker.
func NewTracker(cfg Config) *Tracker {
	if cfg.AllottedBudget <= 0 {
		cfg.AllottedBudget = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		config:      cfg,
		windowStart: cfg.Now(),
		now:         cfg.Now,
	}
}

// rolloverLocked resets consumption when the window has elapsed.
func (t *Tracker) rolloverLocked() {
	now := t.now()
	for now.Sub(t.windowStart) >= t.config.Window {
		t.windowStart = t.windowStart.Add(t.config.Window)
		t.consumed = 0
		t.rollovers++
	}
}

// RecordOutcome feeds a completed execution into the budget.
// Failures consume one unit; successes only feed the audit trail.
func (t *Tracker) RecordOutcome(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()

	if failed {
		t.consumed++
		t.totalFailures++
	} else {
		t.totalSuccesses++
	}
}

// BurnRate returns consumed/allotted for the current window.
func (t *Tracker) BurnRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return float64(t.consumed) / float64(t.config.AllottedBudget)
}

// WouldExceedBudget reports whether the burn rate has crossed 1.0.
// This gates admission — the cost/margin check is independent and
// evaluated before this one.
func (t *Tracker) WouldExceedBudget() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return t.consumed >= t.config.AllottedBudget
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats is a point-in-time view of the budget.
type Stats struct {
	Consumed       int64     `json:"consumed"`
	Allotted       int64     `json:"allotted"`
	BurnRate       float64   `json:"burn_rate"`
	WindowStart    time.Time `json:"window_start"`
	TotalFailures  int64     `json:"total_failures"`
	TotalSuccesses int64     `json:"total_successes"`
	Rollovers      int64     `json:"rollovers"`
}

// Stats returns current budget statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked()
	return Stats{
		Consumed:       t.consumed,
		Allotted:       t.config.AllottedBudget,
		BurnRate:       float64(t.consumed) / float64(t.config.AllottedBudget),
		WindowStart:    t.windowStart,
		TotalFailures:  t.totalFailures,
		TotalSuccesses: t.totalSuccesses,
		Rollovers:      t.rollovers,
	}
}
