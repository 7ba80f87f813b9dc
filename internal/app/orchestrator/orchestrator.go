// Package orchestrator is the central coordinator of the Ampli engine.
//
// Admission pipeline order is fixed: validate → idempotency short-circuit
// → cost/margin gate → error-budget gate → feature gate → enqueue with
// priority. Submission never blocks on execution — workers pull from the
// priority queues and run tasks and competitions through the per-
// collaborator circuit breakers.
package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ampli-network/ampli/internal/collab"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/breaker"
	"github.com/ampli-network/ampli/internal/infra/evolution"
	"github.com/ampli-network/ampli/internal/infra/finops"
	"github.com/ampli-network/ampli/internal/infra/idempotency"
	"github.com/ampli-network/ampli/internal/infra/queue"
	"github.com/ampli-network/ampli/internal/infra/rollout"
	"github.com/ampli-network/ampli/internal/infra/slo"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the orchestrator.
type Config struct {
	// Workers is the bounded pool size per queue (default 10).
	Workers int

	// Competitors are the default strategy variants for competitions.
	Competitors []string

	// EvolutionMinDelta is the win-rate delta a champion must clear to
	// trigger the evolution pipeline (default 0.05).
	EvolutionMinDelta float64

	// BaselineAlpha is the EWMA weight for the rolling champion-score
	// baseline used when a competition has a single survivor (default 0.3).
	BaselineAlpha float64

	// ResultRetention bounds how long settled tasks and competitions
	// stay queryable (default 24h, matching the idempotency cache).
	ResultRetention time.Duration

	// SweepInterval controls the retention janitor frequency (default 10m).
	SweepInterval time.Duration

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           10,
		Competitors:       domain.DefaultCompetitors,
		EvolutionMinDelta: 0.05,
		BaselineAlpha:     0.3,
		ResultRetention:   24 * time.Hour,
		SweepInterval:     10 * time.Minute,
	}
}

// ─── Audit Sink ─────────────────────────────────────────────────────────────

// Audit receives settled competitions for the persistent trail.
// Failures are logged and swallowed.
type Audit interface {
	InsertCompetition(c domain.Competition, res domain.CompetitionResult) error
}

// ─── Orchestrator ───────────────────────────────────────────────────────────

// Orchestrator wires the admission gates, queues, workers, and the
// self-compete scoring/promotion loop.
type Orchestrator struct {
	config Config

	idem      *idempotency.Store
	estimator *finops.Estimator
	budget    *slo.Tracker
	gate      *rollout.Gate
	evolution *evolution.Pipeline
	audit     Audit

	news         collab.Collaborator
	share        collab.Collaborator
	newsBreaker  *breaker.Breaker
	shareBreaker *breaker.Breaker

	taskQueue *queue.Queue[*domain.Task]
	compQueue *queue.Queue[*domain.Competition]

	// Results and lifecycle state.
	mu           sync.RWMutex
	tasks        map[string]*domain.Task
	taskResults  map[string]*domain.TaskResult
	competitions map[string]*domain.Competition
	compResults  map[string]*domain.CompetitionResult

	// Rolling champion-score baseline (EWMA).
	baseline    float64
	baselineSet bool

	// Trip counts already exported to the breaker trips counter.
	tripsSeen map[string]int64

	now func() time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// Deps bundles the orchestrator's collaborating services.
type Deps struct {
	Idempotency *idempotency.Store
	Estimator   *finops.Estimator
	Budget      *slo.Tracker
	Gate        *rollout.Gate
	Evolution   *evolution.Pipeline
	Audit       Audit // optional

	News         collab.Collaborator
	Share        collab.Collaborator
	NewsBreaker  *breaker.Breaker
	ShareBreaker *breaker.Breaker

	TaskQueue *queue.Queue[*domain.Task]
	CompQueue *queue.Queue[*domain.Competition]
}

// New creates an orchestrator. Call Start to launch the worker pools.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if len(cfg.Competitors) == 0 {
		cfg.Competitors = domain.DefaultCompetitors
	}
	if cfg.EvolutionMinDelta <= 0 {
		cfg.EvolutionMinDelta = 0.05
	}
	if cfg.BaselineAlpha <= 0 || cfg.BaselineAlpha > 1 {
		cfg.BaselineAlpha = 0.3
	}
	if cfg.ResultRetention <= 0 {
		cfg.ResultRetention = 24 * time.Hour
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{
		config:       cfg,
		idem:         deps.Idempotency,
		estimator:    deps.Estimator,
		budget:       deps.Budget,
		gate:         deps.Gate,
		evolution:    deps.Evolution,
		audit:        deps.Audit,
		news:         deps.News,
		share:        deps.Share,
		newsBreaker:  deps.NewsBreaker,
		shareBreaker: deps.ShareBreaker,
		taskQueue:    deps.TaskQueue,
		compQueue:    deps.CompQueue,
		tasks:        make(map[string]*domain.Task),
		taskResults:  make(map[string]*domain.TaskResult),
		competitions: make(map[string]*domain.Competition),
		compResults:  make(map[string]*domain.CompetitionResult),
		tripsSeen:    make(map[string]int64),
		now:          cfg.Now,
		done:         make(chan struct{}),
	}
}

// newID mints a prefixed identifier.
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// ─── Lookups ────────────────────────────────────────────────────────────────

// GetTask returns a task and its result (result nil until settled).
func (o *Orchestrator) GetTask(id string) (*domain.Task, *domain.TaskResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	if !ok {
		return nil, nil, false
	}
	return t, o.taskResults[id], true
}

// GetCompetition returns a competition and its result (result nil until
// settled).
func (o *Orchestrator) GetCompetition(id string) (*domain.Competition, *domain.CompetitionResult, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	c, ok := o.competitions[id]
	if !ok {
		return nil, nil, domain.ErrCompetitionNotFound
	}
	return c, o.compResults[id], nil
}

// Baseline returns the rolling champion-score baseline.
func (o *Orchestrator) Baseline() (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.baseline, o.baselineSet
}

// updateBaseline folds a champion score into the EWMA baseline.
func (o *Orchestrator) updateBaseline(score float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.baselineSet {
		o.baseline = score
		o.baselineSet = true
		return
	}
	a := o.config.BaselineAlpha
	o.baseline = a*score + (1-a)*o.baseline
}

// ─── Status Snapshot ────────────────────────────────────────────────────────

// Status is the engine-wide snapshot served by GET /status.
type Status struct {
	SLO struct {
		BurnRate float64 `json:"burn_rate"`
		Consumed int64   `json:"consumed"`
		Allotted int64   `json:"allotted"`
	} `json:"slo"`
	Cost struct {
		Allocation map[string]int64 `json:"allocation_micro"`
	} `json:"cost"`
	Queues struct {
		Tasks        queue.Stats `json:"tasks"`
		Competitions queue.Stats `json:"competitions"`
	} `json:"queues"`
	Breakers []breaker.Snapshot `json:"breakers"`
	Rollouts map[string]int     `json:"rollouts"`
}

// Snapshot assembles the current engine status.
func (o *Orchestrator) Snapshot() Status {
	var st Status
	budget := o.budget.Stats()
	st.SLO.BurnRate = budget.BurnRate
	st.SLO.Consumed = budget.Consumed
	st.SLO.Allotted = budget.Allotted
	st.Cost.Allocation = o.estimator.Stats().Spend
	st.Queues.Tasks = o.taskQueue.Stats()
	st.Queues.Competitions = o.compQueue.Stats()
	st.Breakers = []breaker.Snapshot{o.newsBreaker.Snapshot(), o.shareBreaker.Snapshot()}
	st.Rollouts = o.gate.Snapshot()
	return st
}

// retain records a freshly admitted task.
func (o *Orchestrator) retainTask(t *domain.Task) {
	o.mu.Lock()
	o.tasks[t.ID] = t
	o.mu.Unlock()
}

func (o *Orchestrator) retainCompetition(c *domain.Competition) {
	o.mu.Lock()
	o.competitions[c.ID] = c
	o.mu.Unlock()
}

func (o *Orchestrator) settleTask(t *domain.Task, res *domain.TaskResult, failed bool) {
	o.mu.Lock()
	t.CompletedAt = o.now()
	if failed {
		t.Status = domain.TaskFailed
	} else {
		t.Status = domain.TaskCompleted
	}
	o.taskResults[t.ID] = res
	o.mu.Unlock()
}

func (o *Orchestrator) settleCompetition(c *domain.Competition, res *domain.CompetitionResult) {
	o.mu.Lock()
	c.CompletedAt = o.now()
	c.Status = res.Status
	o.compResults[c.ID] = res
	o.mu.Unlock()
}

// ─── Retention ──────────────────────────────────────────────────────────────

// Sweep destroys settled tasks and competitions older than the result
// retention window, together with their cached results. Queued and
// executing entries are never touched. Returns how many were dropped.
func (o *Orchestrator) Sweep() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	cutoff := o.now().Add(-o.config.ResultRetention)
	dropped := 0
	for id, t := range o.tasks {
		if t.Status != domain.TaskCompleted && t.Status != domain.TaskFailed {
			continue
		}
		if t.CompletedAt.Before(cutoff) {
			delete(o.tasks, id)
			delete(o.taskResults, id)
			dropped++
		}
	}
	for id, c := range o.competitions {
		if c.Status != domain.CompetitionCompleted && c.Status != domain.CompetitionFailed {
			continue
		}
		if c.CompletedAt.Before(cutoff) {
			delete(o.competitions, id)
			delete(o.compResults, id)
			dropped++
		}
	}
	return dropped
}
