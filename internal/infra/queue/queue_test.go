package queue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ampli-network/ampli/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func newSmallQueue(t *testing.T) *Queue[string] {
	t.Helper()
	return New[string](Config{
		BackPressureSoft:   5,
		BackPressureMedium: 10,
		BackPressureHard:   15,
	})
}

// ─── Ordering ───────────────────────────────────────────────────────────────

func TestQueue_PriorityOrdering(t *testing.T) {
	q := New[string](DefaultConfig())

	// Enqueue in reverse priority order.
	for _, p := range []int{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent} {
		if err := q.Enqueue(domain.PriorityLabel(p), p); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", domain.PriorityLabel(p), err)
		}
	}

	want := []string{"URGENT", "HIGH", "MEDIUM", "LOW"}
	for _, w := range want {
		e := q.Dequeue()
		if e == nil {
			t.Fatalf("Dequeue() = nil, want %s", w)
		}
		if e.Value != w {
			t.Errorf("Dequeue() = %s, want %s", e.Value, w)
		}
	}
}

func TestQueue_FIFOWithinClass(t *testing.T) {
	q := New[string](DefaultConfig())

	for i := 0; i < 5; i++ {
		q.Enqueue(fmt.Sprintf("job-%d", i), domain.PriorityMedium)
	}
	for i := 0; i < 5; i++ {
		e := q.Dequeue()
		if want := fmt.Sprintf("job-%d", i); e.Value != want {
			t.Errorf("Dequeue() = %s, want %s (FIFO within class)", e.Value, want)
		}
	}
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := New[string](DefaultConfig())
	if e := q.Dequeue(); e != nil {
		t.Errorf("Dequeue() on empty = %v, want nil", e)
	}
}

// ─── Back-Pressure ──────────────────────────────────────────────────────────

func TestQueue_SoftRejectsLow(t *testing.T) {
	q := newSmallQueue(t)
	for i := 0; i < 5; i++ {
		q.Enqueue("x", domain.PriorityMedium)
	}

	err := q.Enqueue("rejected", domain.PriorityLow)
	if !errors.Is(err, domain.ErrBackPressureSoft) {
		t.Errorf("Enqueue(low) at soft limit = %v, want ErrBackPressureSoft", err)
	}
	if err := q.Enqueue("ok", domain.PriorityMedium); err != nil {
		t.Errorf("Enqueue(medium) at soft limit = %v, want nil", err)
	}
}

func TestQueue_MediumAdmitsOnlyUrgent(t *testing.T) {
	q := newSmallQueue(t)
	for i := 0; i < 10; i++ {
		q.Enqueue("x", domain.PriorityUrgent)
	}

	err := q.Enqueue("rejected", domain.PriorityHigh)
	if !errors.Is(err, domain.ErrBackPressureMedium) {
		t.Errorf("Enqueue(high) at medium limit = %v, want ErrBackPressureMedium", err)
	}
	if err := q.Enqueue("ok", domain.PriorityUrgent); err != nil {
		t.Errorf("Enqueue(urgent) at medium limit = %v, want nil", err)
	}
}

func TestQueue_HardRejectsAll(t *testing.T) {
	q := newSmallQueue(t)
	for i := 0; i < 15; i++ {
		q.Enqueue("x", domain.PriorityUrgent)
	}

	err := q.Enqueue("rejected", domain.PriorityUrgent)
	if !errors.Is(err, domain.ErrBackPressureHard) {
		t.Errorf("Enqueue(urgent) at hard limit = %v, want ErrBackPressureHard", err)
	}
	if got := q.Level(); got != BPHard {
		t.Errorf("Level() = %s, want HARD", got)
	}
}

// ─── Signalling & Stats ─────────────────────────────────────────────────────

func TestQueue_ReadySignal(t *testing.T) {
	q := New[string](DefaultConfig())

	q.Enqueue("job", domain.PriorityMedium)
	select {
	case <-q.Ready():
	default:
		t.Error("Ready() should have a pending signal after Enqueue")
	}
}

func TestQueue_Stats(t *testing.T) {
	q := newSmallQueue(t)
	q.Enqueue("a", domain.PriorityUrgent)
	q.Enqueue("b", domain.PriorityMedium)
	q.Dequeue()

	st := q.Stats()
	if st.Depth != 1 {
		t.Errorf("Depth = %d, want 1", st.Depth)
	}
	if st.TotalEnqueued != 2 || st.TotalDequeued != 1 {
		t.Errorf("counters = %d enqueued / %d dequeued, want 2/1", st.TotalEnqueued, st.TotalDequeued)
	}
	if st.ByClass[domain.PriorityMedium] != 1 {
		t.Errorf("ByClass[medium] = %d, want 1", st.ByClass[domain.PriorityMedium])
	}
}
