package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/collab"
	"github.com/ampli-network/ampli/internal/domain"
	"github.com/ampli-network/ampli/internal/infra/metrics"
)

// executeTask runs one task through the collaborators: a sentiment read
// from the news service, then a settle-all share fan-out across every
// target platform. Collaborator failures degrade the result; the task
// fails outright only when every branch failed.
func (o *Orchestrator) executeTask(ctx context.Context, t *domain.Task) (*domain.TaskResult, bool) {
	o.mu.Lock()
	t.Status = domain.TaskExecuting
	t.StartedAt = time.Now()
	o.mu.Unlock()

	forecast := o.estimator.EstimateTask(t.Tenant, t.Type, t.Priority, len(t.Platforms))
	res := &domain.TaskResult{
		TaskID:    t.ID,
		CostMicro: forecast.CostMicro,
		Tags:      forecast.Tags,
	}

	sentiment, newsErr := o.readSentiment(ctx, t.Tenant, t.Description, "")
	res.Sentiment = sentiment
	if newsErr != nil {
		res.Error = "news: " + newsErr.Error()
	}

	res.Shares = o.fanOutShares(ctx, t.Tenant, t.Description, "", t.Platforms)
	res.Amplification = amplification(sentiment, res.Shares)

	failed := newsErr != nil && res.SuccessfulShares() == 0
	return res, failed
}

// readSentiment calls the news collaborator through its breaker.
// A failed read yields a neutral-zero sentiment, not a task abort.
func (o *Orchestrator) readSentiment(ctx context.Context, tenant, content, variant string) (float64, error) {
	var out collab.Output
	err := o.newsBreaker.Execute(ctx, func(cctx context.Context) error {
		var cerr error
		out, cerr = o.news.Call(cctx, collab.Input{
			Tenant:  tenant,
			Content: content,
			Variant: variant,
		})
		return cerr
	})
	if err != nil {
		return 0, err
	}
	return out.Signal, nil
}

// fanOutShares runs the share collaborator for every platform in
// parallel and waits for all of them to settle. One slow or failing
// platform never short-circuits the others; its outcome carries a
// structured error instead.
func (o *Orchestrator) fanOutShares(ctx context.Context, tenant, content, variant string, platforms []string) []domain.ShareOutcome {
	outcomes := make([]domain.ShareOutcome, len(platforms))
	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform string) {
			defer wg.Done()
			var out collab.Output
			err := o.shareBreaker.Execute(ctx, func(cctx context.Context) error {
				var cerr error
				out, cerr = o.share.Call(cctx, collab.Input{
					Tenant:   tenant,
					Content:  content,
					Platform: platform,
					Variant:  variant,
				})
				return cerr
			})
			if err != nil {
				outcomes[i] = domain.ShareOutcome{Platform: platform, Error: err.Error()}
				metrics.ShareFailures.WithLabelValues(platform, failureReason(err)).Inc()
				return
			}
			outcomes[i] = domain.ShareOutcome{Platform: platform, OK: true, Reach: out.Signal}
		}(i, platform)
	}
	wg.Wait()
	return outcomes
}

// failureReason buckets a collaborator error for the failure counter.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCollaboratorTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	default:
		return "error"
	}
}

// amplification scores a run: sentiment-weighted mean reach across the
// requested platforms. Failed shares contribute zero reach, so partial
// failures pull the score down without zeroing it.
func amplification(sentiment float64, shares []domain.ShareOutcome) float64 {
	if len(shares) == 0 {
		return sentiment
	}
	var reach float64
	for _, s := range shares {
		if s.OK {
			reach += s.Reach
		}
	}
	return sentiment * reach / float64(len(shares))
}
