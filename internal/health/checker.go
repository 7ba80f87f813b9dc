// Package health provides periodic engine health checks.
// Four checks run every 60 seconds: ledger reachability, queue
// saturation, collaborator availability, and error-budget posture.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/infra/breaker"
	"github.com/ampli-network/ampli/internal/infra/queue"
	"github.com/ampli-network/ampli/internal/infra/slo"
	"github.com/ampli-network/ampli/internal/infra/sqlite"
)

// Check defines a single health check.
type Check struct {
	Name    string
	CheckFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Depths reports current queue saturation to the checker.
type Depths interface {
	Level() queue.BackPressureLevel
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker with the standard engine checks.
// db may be nil when the engine runs without a ledger.
func NewChecker(db *sqlite.DB, budget *slo.Tracker, queues []Depths, breakers []*breaker.Breaker) *Checker {
	c := &Checker{interval: 60 * time.Second}

	if db != nil {
		c.checks = append(c.checks, Check{
			Name: "ledger",
			CheckFn: func(ctx context.Context) error {
				return db.Ping()
			},
		})
	}
	c.checks = append(c.checks,
		Check{
			Name: "queues",
			CheckFn: func(ctx context.Context) error {
				for _, q := range queues {
					if q.Level() == queue.BPHard {
						return fmt.Errorf("queue at hard back-pressure")
					}
				}
				return nil
			},
		},
		Check{
			Name: "collaborators",
			CheckFn: func(ctx context.Context) error {
				open := 0
				for _, b := range breakers {
					if b.State() == breaker.Open {
						open++
					}
				}
				if len(breakers) > 0 && open == len(breakers) {
					return fmt.Errorf("all %d collaborator circuits open", open)
				}
				return nil
			},
		},
		Check{
			Name: "error_budget",
			CheckFn: func(ctx context.Context) error {
				if rate := budget.BurnRate(); rate >= 1 {
					return fmt.Errorf("error budget exhausted (burn rate %.2f)", rate)
				}
				return nil
			},
		},
	)
	return c
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
		} else {
			s.Healthy = true
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
