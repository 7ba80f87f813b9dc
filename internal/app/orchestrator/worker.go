package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/breaker"
	"github.com/ampli-network/ampli/internal/infra/metrics"
)

// pollInterval bounds pickup latency when the ready signal was consumed
// by a sibling worker.
const pollInterval = 200 * time.Millisecond

// Start launches the bounded worker pools, one per queue. Workers run
// until Stop is called or ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	log.Printf("[orchestrator] starting %d task workers, %d competition workers", o.config.Workers, o.config.Workers)
	for i := 0; i < o.config.Workers; i++ {
		o.wg.Add(2)
		go o.taskWorker(ctx)
		go o.competitionWorker(ctx)
	}
	o.wg.Add(1)
	go o.janitor(ctx)
}

// janitor destroys settled results past the retention window so long
// uptimes do not accumulate unbounded lifecycle state.
func (o *Orchestrator) janitor(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := o.Sweep(); dropped > 0 {
				log.Printf("[orchestrator] retention sweep dropped %d settled entries", dropped)
			}
		}
	}
}

// Stop drains the pools. In-flight work finishes; queued work stays
// queued (and is lost with the process — queues are in-memory).
func (o *Orchestrator) Stop() {
	close(o.done)
	o.wg.Wait()
}

func (o *Orchestrator) taskWorker(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if e := o.taskQueue.Dequeue(); e != nil {
			o.runTask(ctx, e.Value)
			continue
		}
		select {
		case <-o.done:
			return
		case <-ctx.Done():
			return
		case <-o.taskQueue.Ready():
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) competitionWorker(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if e := o.compQueue.Dequeue(); e != nil {
			o.runCompetition(ctx, e.Value)
			continue
		}
		select {
		case <-o.done:
			return
		case <-ctx.Done():
			return
		case <-o.compQueue.Ready():
		case <-ticker.C:
		}
	}
}

// runTask executes one task end-to-end: collaborator calls, settlement,
// budget accounting, usage emission.
func (o *Orchestrator) runTask(ctx context.Context, t *domain.Task) {
	metrics.TasksActive.WithLabelValues("tasks").Inc()
	defer metrics.TasksActive.WithLabelValues("tasks").Dec()
	start := time.Now()

	res, failed := o.executeTask(ctx, t)
	o.settleTask(t, res, failed)

	o.budget.RecordOutcome(failed)
	o.estimator.EmitUsage(domain.UsageEvent{
		Tenant:    t.Tenant,
		RefID:     t.ID,
		Kind:      "task",
		CostMicro: res.CostMicro,
		Tags:      res.Tags,
	})

	metrics.TaskDuration.WithLabelValues(string(t.Type)).Observe(time.Since(start).Seconds())
	o.observe()
}

// runCompetition executes one competition end-to-end.
func (o *Orchestrator) runCompetition(ctx context.Context, c *domain.Competition) {
	metrics.TasksActive.WithLabelValues("competitions").Inc()
	defer metrics.TasksActive.WithLabelValues("competitions").Dec()

	res := o.executeCompetition(ctx, c)
	o.settleCompetition(c, res)
	o.persistCompetition(c, res)

	o.budget.RecordOutcome(res.Status == domain.CompetitionFailed)
	o.estimator.EmitUsage(domain.UsageEvent{
		Tenant:    c.Tenant,
		RefID:     c.ID,
		Kind:      "competition",
		CostMicro: res.CostMicro,
		Tags:      res.Tags,
	})

	o.observe()
}

// observe refreshes the gauges workers are responsible for.
func (o *Orchestrator) observe() {
	metrics.ErrorBudgetBurn.Set(o.budget.BurnRate())
	metrics.QueueDepth.WithLabelValues("tasks").Set(float64(o.taskQueue.Depth()))
	metrics.QueueDepth.WithLabelValues("competitions").Set(float64(o.compQueue.Depth()))
	metrics.BreakerState.WithLabelValues(o.newsBreaker.Name()).Set(float64(o.newsBreaker.State()))
	metrics.BreakerState.WithLabelValues(o.shareBreaker.Name()).Set(float64(o.shareBreaker.State()))

	o.mu.Lock()
	for _, b := range []*breaker.Breaker{o.newsBreaker, o.shareBreaker} {
		trips := b.Snapshot().TotalTrips
		if d := trips - o.tripsSeen[b.Name()]; d > 0 {
			metrics.BreakerTrips.WithLabelValues(b.Name()).Add(float64(d))
			o.tripsSeen[b.Name()] = trips
		}
	}
	o.mu.Unlock()
}
