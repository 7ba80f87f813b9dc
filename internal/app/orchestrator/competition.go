package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/evolution"
	"github.com/ampli-network/ampli/internal/infra/metrics"
)

// executeCompetition races every competitor variant in parallel, scores
// the survivors, and promotes exactly one champion. The champion feeds
// the evolution pipeline only when the error budget is healthy and its
// win-rate delta clears the configured bar.
func (o *Orchestrator) executeCompetition(ctx context.Context, c *domain.Competition) *domain.CompetitionResult {
	o.mu.Lock()
	c.Status = domain.CompetitionRunning
	o.mu.Unlock()

	forecast := o.estimator.EstimateCompetition(c.Tenant, c.Priority, len(c.Platforms), len(c.Competitors))
	res := &domain.CompetitionResult{
		CompetitionID: c.ID,
		Variants:      make([]domain.VariantRun, len(c.Competitors)),
		CostMicro:     forecast.CostMicro,
		Tags:          forecast.Tags,
	}

	// All variants run concurrently; results land at their submission
	// index so tie-breaks stay deterministic.
	var wg sync.WaitGroup
	for i, variant := range c.Competitors {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			res.Variants[i] = o.runVariant(ctx, c, variant)
		}(i, variant)
	}
	wg.Wait()

	winner, runnerUp := domain.SelectChampion(res.Variants)
	if winner < 0 {
		res.Status = domain.CompetitionFailed
		res.Error = domain.ErrNoChampion.Error()
		return res
	}

	champ := res.Variants[winner]
	res.Status = domain.CompetitionCompleted
	res.Champion = champ.VariantID
	res.ChampionScore = champ.Score
	res.WinRateDelta = o.winRateDelta(champ.Score, runnerUp, survivors(res.Variants))
	o.updateBaseline(champ.Score)

	metrics.CompetitionWinRate.Set(res.WinRateDelta)
	metrics.CompetitionCost.Observe(float64(res.CostMicro))

	if o.budget.BurnRate() < 1 && res.WinRateDelta > o.config.EvolutionMinDelta {
		res.Evolved = true
		metrics.EvolutionTriggers.Inc()
		o.evolution.Trigger(evolution.Handoff{
			CompetitionID: c.ID,
			Tenant:        c.Tenant,
			Variant:       champ.VariantID,
			Content:       c.Content,
			Score:         champ.Score,
			WinRateDelta:  res.WinRateDelta,
			At:            time.Now(),
		})
	}

	return res
}

// runVariant executes one competitor's attempt: a variant-flavored
// sentiment read plus the full share fan-out. The variant's score is
// its amplification. A variant fails only when every branch failed.
func (o *Orchestrator) runVariant(ctx context.Context, c *domain.Competition, variant string) domain.VariantRun {
	run := domain.VariantRun{VariantID: variant}

	sentiment, newsErr := o.readSentiment(ctx, c.Tenant, c.Content, variant)
	shares := o.fanOutShares(ctx, c.Tenant, c.Content, variant, c.Platforms)

	result := &domain.TaskResult{
		TaskID:        c.ID + "/" + variant,
		Sentiment:     sentiment,
		Shares:        shares,
		Amplification: amplification(sentiment, shares),
	}
	if newsErr != nil {
		result.Error = "news: " + newsErr.Error()
	}
	run.Result = result
	run.Score = result.Amplification

	if newsErr != nil && result.SuccessfulShares() == 0 {
		run.Failed = true
		run.Error = result.Error
	}
	return run
}

// winRateDelta computes the champion's margin of victory. With two or
// more survivors it is the gap to the runner-up. A single survivor is
// measured against the rolling champion baseline; with no baseline yet
// there is no evidence of improvement, so the delta is zero.
func (o *Orchestrator) winRateDelta(champion, runnerUp float64, alive int) float64 {
	if alive >= 2 {
		return champion - runnerUp
	}
	baseline, ok := o.Baseline()
	if !ok {
		return 0
	}
	return champion - baseline
}

// survivors counts the non-failed variants.
func survivors(variants []domain.VariantRun) int {
	n := 0
	for _, v := range variants {
		if !v.Failed {
			n++
		}
	}
	return n
}

// persistCompetition writes the settled competition to the audit trail.
// Audit failures are logged, never surfaced.
func (o *Orchestrator) persistCompetition(c *domain.Competition, res *domain.CompetitionResult) {
	if o.audit == nil {
		return
	}
	if err := o.audit.InsertCompetition(*c, *res); err != nil {
		log.Printf("[orchestrator] competition audit write failed for %s: %v", c.ID, err)
	}
}
