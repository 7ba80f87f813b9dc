// Package queue implements the bounded priority queue feeding the worker
// pool.
//
// Four priority classes (urgent=1 … low=4); numerically lower is served
// first, ties break FIFO by enqueue time. Depth is bounded with tiered
// back-pressure: soft rejects low-priority work, medium rejects everything
// but urgent, hard rejects all. The task and competition queues are
// separate instances — no ordering guarantee exists across them.
package queue

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures a priority queue.
type Config struct {
	BackPressureSoft   int // reject low-priority at this depth (default 1_000)
	BackPressureMedium int // reject all except urgent (default 5_000)
	BackPressureHard   int // reject everything (default 10_000)
}

// DefaultConfig returns production queue defaults.
func DefaultConfig() Config {
	return Config{
		BackPressureSoft:   1_000,
		BackPressureMedium: 5_000,
		BackPressureHard:   10_000,
	}
}

// ─── Back-Pressure Levels ───────────────────────────────────────────────────

// BackPressureLevel indicates load severity.
type BackPressureLevel int

const (
	BPNone   BackPressureLevel = iota // accepting all work
	BPSoft                            // rejecting low-priority work
	BPMedium                          // rejecting all except urgent
	BPHard                            // rejecting everything
)

// String returns a human-readable back-pressure level.
func (bp BackPressureLevel) String() string {
	switch bp {
	case BPNone:
		return "NONE"
	case BPSoft:
		return "SOFT"
	case BPMedium:
		return "MEDIUM"
	case BPHard:
		return "HARD"
	default:
		return "UNKNOWN"
	}
}

// ─── Queue ──────────────────────────────────────────────────────────────────

// Entry wraps a queued value with scheduling metadata.
type Entry[T any] struct {
	Value    T
	Priority int
	QueuedAt time.Time
}

// Queue is a bounded four-class priority queue. Thread-safe.
type Queue[T any] struct {
	mu     sync.Mutex
	config Config

	// One FIFO slice per priority class, indexed 1 (urgent) … 4 (low).
	classes [5][]Entry[T]

	// ready signals blocked workers that an entry arrived.
	ready chan struct{}

	// Stats
	totalEnqueued atomic.Int64
	totalDequeued atomic.Int64
	totalRejected atomic.Int64
}

// New creates a priority queue.
func New[T any](cfg Config) *Queue[T] {
	if cfg.BackPressureSoft <= 0 {
		cfg.BackPressureSoft = 1_000
	}
	if cfg.BackPressureMedium <= 0 {
		cfg.BackPressureMedium = 5_000
	}
	if cfg.BackPressureHard <= 0 {
		cfg.BackPressureHard = 10_000
	}
	return &Queue[T]{
		config: cfg,
		ready:  make(chan struct{}, 1),
	}
}

// Enqueue adds a value at the given priority class.
// Returns a back-pressure error if the depth tier rejects it.
func (q *Queue[T]) Enqueue(value T, priority int) error {
	if priority < domain.PriorityUrgent {
		priority = domain.PriorityUrgent
	}
	if priority > domain.PriorityLow {
		priority = domain.PriorityLow
	}

	q.mu.Lock()
	depth := q.depthLocked()
	bp := q.levelLocked(depth)

	switch bp {
	case BPHard:
		q.mu.Unlock()
		q.totalRejected.Add(1)
		return domain.ErrBackPressureHard
	case BPMedium:
		if priority > domain.PriorityUrgent {
			q.mu.Unlock()
			q.totalRejected.Add(1)
			return domain.ErrBackPressureMedium
		}
	case BPSoft:
		if priority >= domain.PriorityLow {
			q.mu.Unlock()
			q.totalRejected.Add(1)
			return domain.ErrBackPressureSoft
		}
	}

	q.classes[priority] = append(q.classes[priority], Entry[T]{
		Value:    value,
		Priority: priority,
		QueuedAt: time.Now(),
	})
	q.mu.Unlock()

	q.totalEnqueued.Add(1)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the oldest entry of the highest-priority
// non-empty class. Returns nil when the queue is empty.
func (q *Queue[T]) Dequeue() *Entry[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	for p := domain.PriorityUrgent; p <= domain.PriorityLow; p++ {
		if len(q.classes[p]) == 0 {
			continue
		}
		e := q.classes[p][0]
		q.classes[p] = q.classes[p][1:]
		q.totalDequeued.Add(1)
		return &e
	}
	return nil
}

// Ready returns a channel that receives a signal when work arrives.
// Workers block on it between empty Dequeue attempts.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Depth returns the total queued entries across all classes.
func (q *Queue[T]) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

// Level returns the current back-pressure level.
func (q *Queue[T]) Level() BackPressureLevel {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.levelLocked(q.depthLocked())
}

func (q *Queue[T]) depthLocked() int {
	total := 0
	for p := domain.PriorityUrgent; p <= domain.PriorityLow; p++ {
		total += len(q.classes[p])
	}
	return total
}

func (q *Queue[T]) levelLocked(depth int) BackPressureLevel {
	switch {
	case depth >= q.config.BackPressureHard:
		return BPHard
	case depth >= q.config.BackPressureMedium:
		return BPMedium
	case depth >= q.config.BackPressureSoft:
		return BPSoft
	default:
		return BPNone
	}
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats is a point-in-time view of the queue.
type Stats struct {
	Depth         int               `json:"depth"`
	BackPressure  BackPressureLevel `json:"back_pressure"`
	ByClass       [5]int            `json:"by_class"`
	TotalEnqueued int64             `json:"total_enqueued"`
	TotalDequeued int64             `json:"total_dequeued"`
	TotalRejected int64             `json:"total_rejected"`
}

// Stats returns current queue statistics.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	depth := q.depthLocked()
	bp := q.levelLocked(depth)
	var byClass [5]int
	for p := domain.PriorityUrgent; p <= domain.PriorityLow; p++ {
		byClass[p] = len(q.classes[p])
	}
	q.mu.Unlock()

	return Stats{
		Depth:         depth,
		BackPressure:  bp,
		ByClass:       byClass,
		TotalEnqueued: q.totalEnqueued.Load(),
		TotalDequeued: q.totalDequeued.Load(),
		TotalRejected: q.totalRejected.Load(),
	}
}
