// Package breaker implements the per-collaborator circuit breaker.
//
// Breaker states:
//   - CLOSED  (normal) → failures reach threshold → OPEN
//   - OPEN    (blocking) → after reset interval → HALF_OPEN
//   - HALF_OPEN (probing) → probe succeeds → CLOSED, probe fails → OPEN
//
// Every call is wrapped with a timeout; a timeout counts as a failure.
// One breaker per collaborator call-site — an unrelated collaborator's
// failures must never trip this one.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
)

// ─── State ──────────────────────────────────────────────────────────────────

// State represents the circuit breaker state.
type State int

const (
	Closed   State = iota // Normal operation — calls pass through
	Open                  // Tripped — all calls rejected immediately
	HalfOpen              // Recovery probe — exactly one trial call allowed
)

// String returns a human-readable breaker state.
func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures a circuit breaker.
type Config struct {
	ErrorThreshold int           // consecutive failures to trip (default 5)
	ResetInterval  time.Duration // time in OPEN before a HALF_OPEN probe (default 30s)
	CallTimeout    time.Duration // per-call timeout (default 5s)

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 5,
		ResetInterval:  30 * time.Second,
		CallTimeout:    5 * time.Second,
	}
}

// ─── Breaker ────────────────────────────────────────────────────────────────

// Breaker wraps a single unreliable collaborator call-site.
// Thread-safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	name      string
	config    Config
	state     State
	failures  int
	probing   bool // a half-open trial call is in flight
	openedAt  time.Time
	totalTrips int64
	now       func() time.Time
}

// New creates a circuit breaker for the named collaborator.
func New(name string, cfg Config) *Breaker {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = 5
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = 30 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:   name,
		config: cfg,
		state:  Closed,
		now:    cfg.Now,
	}
}

// Name returns the collaborator name this breaker protects.
func (b *Breaker) Name() string { return b.name }

// Execute runs call through the breaker with the configured timeout.
// Returns domain.ErrCircuitOpen without invoking call when the circuit
// is open and the reset interval has not elapsed. A timeout is recorded
// as a failure and surfaced as domain.ErrCollaboratorTimeout.
func (b *Breaker) Execute(ctx context.Context, call func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, b.config.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- call(cctx) }()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = cctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s: %w", b.name, domain.ErrCollaboratorTimeout)
	}

	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// allow checks whether a call should be permitted, transitioning
// OPEN → HALF_OPEN when the reset interval has elapsed. In HALF_OPEN,
// exactly one trial call is admitted; concurrent callers are rejected
// until the probe settles.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) >= b.config.ResetInterval {
			b.state = HalfOpen
			b.probing = true
			return nil
		}
		return fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
	case HalfOpen:
		if b.probing {
			return fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
		}
		b.probing = true
		return nil
	}
	return nil
}

// recordSuccess closes the circuit after a successful half-open probe and
// zeroes the failure count while closed.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.failures = 0
		b.probing = false
	case Closed:
		b.failures = 0
	}
}

// recordFailure counts a failure, tripping the breaker at the threshold.
// A failed half-open probe reopens the circuit and restarts the reset timer.
func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failures++
		if b.failures >= b.config.ErrorThreshold {
			b.state = Open
			b.openedAt = b.now()
			b.totalTrips++
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = b.now()
		b.totalTrips++
		b.probing = false
	}
}

// State returns the current breaker state.
// Auto-transitions OPEN → HALF_OPEN if the reset interval has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.config.ResetInterval {
		b.state = HalfOpen
	}
	return b.state
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of the breaker.
type Snapshot struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Failures   int       `json:"failures"`
	TotalTrips int64     `json:"total_trips"`
	OpenedAt   time.Time `json:"opened_at,omitempty"`
}

// Snapshot returns the current state snapshot.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := b.state
	if st == Open && b.now().Sub(b.openedAt) >= b.config.ResetInterval {
		st = HalfOpen
		b.state = HalfOpen
	}
	return Snapshot{
		Name:       b.name,
		State:      st.String(),
		Failures:   b.failures,
		TotalTrips: b.totalTrips,
		OpenedAt:   b.openedAt,
	}
}

// Reset forces the breaker back to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = false
}
