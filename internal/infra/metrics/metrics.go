// Package metrics provides Prometheus metrics for Ampli.
// Counters, gauges, and histograms for admission, execution, cost,
// error-budget burn, and the self-compete pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Admission ──────────────────────────────────────────────────────────────

// RequestsTotal tracks admission outcomes by request kind and result.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "requests_total",
	Help:      "Total submissions by kind and admission result.",
}, []string{"kind", "result"})

// IdempotentHits tracks duplicate submissions short-circuited by the store.
var IdempotentHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "idempotent_hits_total",
	Help:      "Duplicate submissions served from the idempotency cache.",
})

// ─── Execution ──────────────────────────────────────────────────────────────

// TaskDuration tracks task execution duration by type.
var TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ampli",
	Name:      "task_duration_seconds",
	Help:      "Task execution duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"type"})

// TasksActive tracks currently executing jobs per queue.
var TasksActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ampli",
	Name:      "tasks_active",
	Help:      "Number of currently executing jobs per queue.",
}, []string{"queue"})

// QueueDepth tracks queued jobs per queue.
var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ampli",
	Name:      "queue_depth",
	Help:      "Jobs waiting in each priority queue.",
}, []string{"queue"})

// ShareFailures tracks per-platform share failures by reason.
var ShareFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "share_failures_total",
	Help:      "Per-platform share call failures by reason.",
}, []string{"platform", "reason"})

// ─── FinOps ─────────────────────────────────────────────────────────────────

// CompetitionCost tracks realized cost per competition in microdollars.
var CompetitionCost = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ampli",
	Name:      "competition_cost_micro",
	Help:      "Realized cost per competition in microdollars.",
	Buckets:   []float64{5_000, 10_000, 25_000, 50_000, 100_000, 250_000},
})

// MarginRejections tracks submissions refused by the margin guardrail.
var MarginRejections = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "margin_rejections_total",
	Help:      "Submissions refused by the tenant margin guardrail.",
})

// ─── SLO ────────────────────────────────────────────────────────────────────

// ErrorBudgetBurn tracks the current error-budget burn rate.
var ErrorBudgetBurn = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ampli",
	Name:      "error_budget_burn_rate",
	Help:      "Consumed error budget over allotted budget for the current window.",
})

// ─── Circuit Breakers ───────────────────────────────────────────────────────

// BreakerState tracks breaker state per collaborator (0=closed, 1=open, 2=half-open).
var BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ampli",
	Name:      "breaker_state",
	Help:      "Circuit breaker state per collaborator (0=closed, 1=open, 2=half-open).",
}, []string{"collaborator"})

// BreakerTrips tracks total breaker trips per collaborator.
var BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "breaker_trips_total",
	Help:      "Total circuit breaker trips per collaborator.",
}, []string{"collaborator"})

// ─── Self-Compete ───────────────────────────────────────────────────────────

// CompetitionWinRate tracks the most recent champion's win-rate delta.
var CompetitionWinRate = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "ampli",
	Name:      "competition_win_rate_delta",
	Help:      "Champion score advantage over the runner-up for the latest competition.",
})

// EvolutionTriggers tracks evolution pipeline hand-offs.
var EvolutionTriggers = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "ampli",
	Name:      "evolution_triggers_total",
	Help:      "Total champion hand-offs to the evolution pipeline.",
})
