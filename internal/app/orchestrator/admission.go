package orchestrator

import (
	"time"

	"github.com/ampli-network/ampli/internal/app/validate"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/idempotency"
	"github.com/ampli-network/ampli/internal/infra/metrics"
	"github.com/ampli-network/ampli/internal/infra/rollout"
)

// Accepted is the 202 body both submission endpoints return.
type Accepted struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	ForecastMicro int64  `json:"forecast_micro"`
	Idempotent    bool   `json:"idempotent,omitempty"`
}

// SubmitTask runs the admission pipeline for a task and enqueues it.
// Gate order is fixed: validate → idempotency → margin → budget →
// feature → enqueue. A gate failure after the idempotency claim releases
// the claim so the client can retry once the condition clears.
func (o *Orchestrator) SubmitTask(req domain.TaskRequest) (Accepted, error) {
	taskType, priority, err := validate.Task(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("task", "rejected_validation").Inc()
		return Accepted{}, err
	}

	ticket, replay, err := o.claim(req.Tenant, req.IdempotencyKey, "task")
	if err != nil {
		return Accepted{}, err
	}
	if replay != nil {
		return *replay, nil
	}

	forecast := o.estimator.EstimateTask(req.Tenant, taskType, priority, len(req.Platforms))
	if err := o.admit("task", req.Tenant, forecast.CostMicro, rollout.FeatureTasksV2, ticket); err != nil {
		return Accepted{}, err
	}

	task := &domain.Task{
		ID:             newID("task"),
		Tenant:         req.Tenant,
		Type:           taskType,
		Status:         domain.TaskQueued,
		Priority:       priority,
		Description:    req.Description,
		Platforms:      req.Platforms,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := o.taskQueue.Enqueue(task, priority); err != nil {
		o.idem.Abort(ticket)
		metrics.RequestsTotal.WithLabelValues("task", "rejected_backpressure").Inc()
		return Accepted{}, err
	}
	o.retainTask(task)
	metrics.QueueDepth.WithLabelValues("tasks").Set(float64(o.taskQueue.Depth()))

	acc := Accepted{
		ID:            task.ID,
		Status:        "accepted",
		Priority:      domain.PriorityLabel(priority),
		ForecastMicro: forecast.CostMicro,
	}
	o.idem.Complete(ticket, acc)
	metrics.RequestsTotal.WithLabelValues("task", "accepted").Inc()
	return acc, nil
}

// SubmitCompetition runs the admission pipeline for a self-compete run.
func (o *Orchestrator) SubmitCompetition(req domain.CompetitionRequest) (Accepted, error) {
	priority, err := validate.Competition(req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("competition", "rejected_validation").Inc()
		return Accepted{}, err
	}

	competitors := req.Competitors
	if len(competitors) == 0 {
		competitors = o.config.Competitors
	}

	ticket, replay, err := o.claim(req.Tenant, req.IdempotencyKey, "competition")
	if err != nil {
		return Accepted{}, err
	}
	if replay != nil {
		return *replay, nil
	}

	forecast := o.estimator.EstimateCompetition(req.Tenant, priority, len(req.Platforms), len(competitors))
	if err := o.admit("competition", req.Tenant, forecast.CostMicro, rollout.FeatureSelfCompete, ticket); err != nil {
		return Accepted{}, err
	}

	comp := &domain.Competition{
		ID:             newID("comp"),
		Tenant:         req.Tenant,
		Content:        req.Content,
		Platforms:      req.Platforms,
		Priority:       priority,
		Competitors:    competitors,
		Status:         domain.CompetitionQueued,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := o.compQueue.Enqueue(comp, priority); err != nil {
		o.idem.Abort(ticket)
		metrics.RequestsTotal.WithLabelValues("competition", "rejected_backpressure").Inc()
		return Accepted{}, err
	}
	o.retainCompetition(comp)
	metrics.QueueDepth.WithLabelValues("competitions").Set(float64(o.compQueue.Depth()))

	acc := Accepted{
		ID:            comp.ID,
		Status:        "accepted",
		Priority:      domain.PriorityLabel(priority),
		ForecastMicro: forecast.CostMicro,
	}
	o.idem.Complete(ticket, acc)
	metrics.RequestsTotal.WithLabelValues("competition", "accepted").Inc()
	return acc, nil
}

// claim resolves the idempotency key. A non-nil replay is the cached
// response for a key that already settled; an InFlight key surfaces as
// a retryable duplicate error. Requests without a key are processed
// fresh every time and get a zero ticket.
func (o *Orchestrator) claim(tenant, key, kind string) (idempotency.Ticket, *Accepted, error) {
	if key == "" {
		return idempotency.Ticket{}, nil, nil
	}
	ticket, outcome, cached := o.idem.Begin(tenant, key)
	switch outcome {
	case idempotency.Done:
		metrics.IdempotentHits.Inc()
		metrics.RequestsTotal.WithLabelValues(kind, "replayed").Inc()
		if acc, ok := cached.(Accepted); ok {
			acc.Idempotent = true
			return idempotency.Ticket{}, &acc, nil
		}
		// Cached value of an unexpected shape; treat as in-flight.
		return idempotency.Ticket{}, nil, domain.ErrDuplicateInFlight
	case idempotency.InFlight:
		metrics.IdempotentHits.Inc()
		metrics.RequestsTotal.WithLabelValues(kind, "duplicate_in_flight").Inc()
		return idempotency.Ticket{}, nil, domain.ErrDuplicateInFlight
	}
	return ticket, nil, nil
}

// admit runs the margin, budget, and feature gates in order, releasing
// the idempotency claim on the first refusal.
func (o *Orchestrator) admit(kind, tenant string, costMicro int64, featureKey string, ticket idempotency.Ticket) error {
	forecast := domain.CostForecast{Tenant: tenant, CostMicro: costMicro}
	if o.estimator.WouldBustMargin(tenant, forecast) {
		o.idem.Abort(ticket)
		metrics.MarginRejections.Inc()
		metrics.RequestsTotal.WithLabelValues(kind, "rejected_margin").Inc()
		return domain.ErrMarginGuardrail
	}
	if o.budget.WouldExceedBudget() {
		o.idem.Abort(ticket)
		metrics.RequestsTotal.WithLabelValues(kind, "rejected_budget").Inc()
		return domain.ErrBudgetExhausted
	}
	if !o.gate.IsEnabled(featureKey, tenant) {
		o.idem.Abort(ticket)
		metrics.RequestsTotal.WithLabelValues(kind, "rejected_feature").Inc()
		return domain.ErrFeatureUnavailable
	}
	return nil
}
