package slo

import (
	"sync"
	"testing"
	"time"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func newTestTracker(t *testing.T, allotted int64, now func() time.Time) *Tracker {
	t.Helper()
	return NewTracker(Config{
		AllottedBudget: allotted,
		Window:         time.Hour,
		Now:            now,
	})
}

// ─── Burn Rate ──────────────────────────────────────────────────────────────

func TestTracker_BurnRate(t *testing.T) {
	tr := newTestTracker(t, 100, time.Now)

	for i := 0; i < 50; i++ {
		tr.RecordOutcome(true)
	}
	if got := tr.BurnRate(); got != 0.5 {
		t.Errorf("BurnRate() = %v, want 0.5", got)
	}

	// Successes never consume budget.
	for i := 0; i < 50; i++ {
		tr.RecordOutcome(false)
	}
	if got := tr.BurnRate(); got != 0.5 {
		t.Errorf("BurnRate() after successes = %v, want 0.5", got)
	}
}

// ─── Gating ─────────────────────────────────────────────────────────────────

func TestTracker_GateOpensBelowOne(t *testing.T) {
	tr := newTestTracker(t, 100, time.Now)

	for i := 0; i < 99; i++ {
		tr.RecordOutcome(true)
	}
	if tr.WouldExceedBudget() {
		t.Error("burn rate 0.99 should admit")
	}

	tr.RecordOutcome(true)
	if !tr.WouldExceedBudget() {
		t.Error("burn rate 1.0 should refuse admission")
	}
}

// ─── Rollover ───────────────────────────────────────────────────────────────

func TestTracker_WindowRollover(t *testing.T) {
	clock := time.Now()
	tr := newTestTracker(t, 10, func() time.Time { return clock })

	for i := 0; i < 10; i++ {
		tr.RecordOutcome(true)
	}
	if !tr.WouldExceedBudget() {
		t.Fatal("budget should be exhausted")
	}

	clock = clock.Add(time.Hour)

	if tr.WouldExceedBudget() {
		t.Error("rollover should reset consumption")
	}
	if got := tr.BurnRate(); got != 0 {
		t.Errorf("BurnRate() after rollover = %v, want 0", got)
	}

	// Audit counters survive the rollover.
	st := tr.Stats()
	if st.TotalFailures != 10 {
		t.Errorf("TotalFailures = %d, want 10", st.TotalFailures)
	}
	if st.Rollovers != 1 {
		t.Errorf("Rollovers = %d, want 1", st.Rollovers)
	}
}

func TestTracker_MultipleWindowsElapsed(t *testing.T) {
	clock := time.Now()
	tr := newTestTracker(t, 10, func() time.Time { return clock })

	tr.RecordOutcome(true)
	clock = clock.Add(5 * time.Hour)

	if got := tr.BurnRate(); got != 0 {
		t.Errorf("BurnRate() after 5 windows = %v, want 0", got)
	}
	if st := tr.Stats(); st.Rollovers != 5 {
		t.Errorf("Rollovers = %d, want 5", st.Rollovers)
	}
}

// ─── Concurrency ────────────────────────────────────────────────────────────

func TestTracker_ConcurrentOutcomes(t *testing.T) {
	tr := newTestTracker(t, 1000, time.Now)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.RecordOutcome(true)
			}
		}()
	}
	wg.Wait()

	if got := tr.BurnRate(); got != 0.5 {
		t.Errorf("BurnRate() after 500 concurrent failures = %v, want 0.5", got)
	}
}
