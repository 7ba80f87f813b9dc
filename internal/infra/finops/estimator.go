// Package finops implements cost forecasting and the tenant margin guardrail.
//
// Estimation is a deterministic function of payload shape — task type,
// platform count, priority class — so the admission path never blocks on it.
// Usage emission is fire-and-forget into the billing ledger: a ledger
// failure is logged and swallowed, never surfaced to the request.
package finops

import (
	"log"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config configures the cost estimator. All amounts are microdollars
// (1 microdollar = $0.000001).
type Config struct {
	// BaseRateMicro is the per-type base cost of a task.
	BaseRateMicro map[domain.TaskType]int64

	// PlatformRateMicro is added once per target platform.
	PlatformRateMicro int64

	// CompetitionVariantMicro is added once per competition variant.
	CompetitionVariantMicro int64

	// MarginMicro is the per-tenant margin allowance per billing window.
	// Tenants not listed fall back to DefaultMarginMicro.
	MarginMicro map[string]int64

	// DefaultMarginMicro is the allowance for unconfigured tenants.
	DefaultMarginMicro int64

	// Window is the billing window. Per-tenant spend resets when it
	// rolls over (default 24h).
	Window time.Duration

	// EmitBuffer is the usage emission channel depth (default 256).
	EmitBuffer int

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production pricing defaults.
func DefaultConfig() Config {
	return Config{
		BaseRateMicro: map[domain.TaskType]int64{
			domain.TaskPost:     2_000,
			domain.TaskThread:   5_000,
			domain.TaskArticle:  12_000,
			domain.TaskCampaign: 30_000,
		},
		PlatformRateMicro:       1_500,
		CompetitionVariantMicro: 4_000,
		DefaultMarginMicro:      5_000_000, // $5 per window
		Window:                  24 * time.Hour,
		EmitBuffer:              256,
	}
}

// priorityMultiplier scales cost by urgency — urgent work pays a premium.
func priorityMultiplier(priority int) float64 {
	switch priority {
	case domain.PriorityUrgent:
		return 2.0
	case domain.PriorityHigh:
		return 1.5
	case domain.PriorityMedium:
		return 1.0
	default:
		return 0.8
	}
}

// ─── Ledger Sink ────────────────────────────────────────────────────────────

// Ledger is the billing sink usage events are drained into.
type Ledger interface {
	AppendUsage(ev domain.UsageEvent) error
}

// ─── Estimator ──────────────────────────────────────────────────────────────

// Estimator forecasts request cost and enforces the margin guardrail.
// Thread-safe; the admission path only touches in-memory state.
type Estimator struct {
	mu     sync.Mutex
	config Config

	// spent tracks per-tenant microdollars consumed this window.
	spent       map[string]int64
	windowStart time.Time
	rollovers   int64

	emitCh    chan domain.UsageEvent
	ledger    Ledger
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time

	// Stats
	emitted int64
	dropped int64
}

// NewEstimator creates an estimator draining usage events into ledger.
// A nil ledger disables persistence (events are counted and discarded).
func NewEstimator(cfg Config, ledger Ledger) *Estimator {
	if cfg.BaseRateMicro == nil {
		cfg.BaseRateMicro = DefaultConfig().BaseRateMicro
	}
	if cfg.PlatformRateMicro <= 0 {
		cfg.PlatformRateMicro = 1_500
	}
	if cfg.CompetitionVariantMicro <= 0 {
		cfg.CompetitionVariantMicro = 4_000
	}
	if cfg.DefaultMarginMicro <= 0 {
		cfg.DefaultMarginMicro = 5_000_000
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.EmitBuffer <= 0 {
		cfg.EmitBuffer = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	e := &Estimator{
		config:      cfg,
		spent:       make(map[string]int64),
		windowStart: cfg.Now(),
		emitCh:      make(chan domain.UsageEvent, cfg.EmitBuffer),
		ledger:      ledger,
		done:        make(chan struct{}),
		now:         cfg.Now,
	}
	e.wg.Add(1)
	go e.drain()
	return e
}

// ─── Estimation ─────────────────────────────────────────────────────────────

// EstimateTask forecasts the cost of a task. Deterministic — same payload
// shape always yields the same forecast.
func (e *Estimator) EstimateTask(tenant string, taskType domain.TaskType, priority int, platforms int) domain.CostForecast {
	base := e.config.BaseRateMicro[taskType]
	cost := float64(base+int64(platforms)*e.config.PlatformRateMicro) * priorityMultiplier(priority)
	return domain.CostForecast{
		Tenant:    tenant,
		CostMicro: int64(cost),
		Tags: domain.FinOpsTags{
			Tenant:    tenant,
			Kind:      "task",
			TaskType:  string(taskType),
			Platforms: platforms,
			Priority:  domain.PriorityLabel(priority),
		},
	}
}

// EstimateCompetition forecasts the cost of a competition: one variant
// charge per competitor on top of the per-platform fan-out.
func (e *Estimator) EstimateCompetition(tenant string, priority int, platforms, competitors int) domain.CostForecast {
	perVariant := int64(platforms)*e.config.PlatformRateMicro + e.config.CompetitionVariantMicro
	cost := float64(int64(competitors)*perVariant) * priorityMultiplier(priority)
	return domain.CostForecast{
		Tenant:    tenant,
		CostMicro: int64(cost),
		Tags: domain.FinOpsTags{
			Tenant:    tenant,
			Kind:      "competition",
			Platforms: platforms,
			Priority:  domain.PriorityLabel(priority),
		},
	}
}

// ─── Margin Guardrail ───────────────────────────────────────────────────────

// rolloverLocked resets per-tenant spend when the billing window has
// elapsed.
func (e *Estimator) rolloverLocked() {
	now := e.now()
	for now.Sub(e.windowStart) >= e.config.Window {
		e.windowStart = e.windowStart.Add(e.config.Window)
		e.spent = make(map[string]int64)
		e.rollovers++
	}
}

// marginFor returns the tenant's configured margin allowance.
func (e *Estimator) marginFor(tenant string) int64 {
	if m, ok := e.config.MarginMicro[tenant]; ok {
		return m
	}
	return e.config.DefaultMarginMicro
}

// WouldBustMargin reports whether admitting forecast would push the
// tenant's window spend past its margin allowance.
func (e *Estimator) WouldBustMargin(tenant string, forecast domain.CostForecast) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return e.spent[tenant]+forecast.CostMicro > e.marginFor(tenant)
}

// TenantSpend returns microdollars consumed by tenant this window.
func (e *Estimator) TenantSpend(tenant string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()
	return e.spent[tenant]
}

// ResetWindow zeroes all per-tenant spend and restarts the billing
// window immediately. Rollover otherwise happens automatically as the
// window elapses.
func (e *Estimator) ResetWindow() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spent = make(map[string]int64)
	e.windowStart = e.now()
}

// ─── Usage Emission ─────────────────────────────────────────────────────────

// EmitUsage records spend against the tenant and queues a ledger event.
// Never blocks and never fails the caller: a full buffer drops the event
// with a log line.
func (e *Estimator) EmitUsage(ev domain.UsageEvent) {
	e.mu.Lock()
	e.rolloverLocked()
	e.spent[ev.Tenant] += ev.CostMicro
	e.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}

	select {
	case e.emitCh <- ev:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		log.Printf("[finops] usage buffer full — dropped event for tenant %s (ref %s)", ev.Tenant, ev.RefID)
	}
}

// drain is the single writer into the billing ledger.
func (e *Estimator) drain() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			// Flush whatever is still buffered.
			for {
				select {
				case ev := <-e.emitCh:
					e.append(ev)
				default:
					return
				}
			}
		case ev := <-e.emitCh:
			e.append(ev)
		}
	}
}

func (e *Estimator) append(ev domain.UsageEvent) {
	e.mu.Lock()
	e.emitted++
	e.mu.Unlock()

	if e.ledger == nil {
		return
	}
	if err := e.ledger.AppendUsage(ev); err != nil {
		log.Printf("[finops] ledger append failed for tenant %s: %v", ev.Tenant, err)
	}
}

// Close stops the drainer after flushing buffered events. Safe to call
// more than once.
func (e *Estimator) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
	})
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats is a point-in-time view of the estimator.
type Stats struct {
	Emitted     int64            `json:"emitted"`
	Dropped     int64            `json:"dropped"`
	Spend       map[string]int64 `json:"spend_micro"`
	WindowStart time.Time        `json:"window_start"`
	Rollovers   int64            `json:"rollovers"`
}

// Stats returns current estimator statistics.
func (e *Estimator) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rolloverLocked()

	spend := make(map[string]int64, len(e.spent))
	for k, v := range e.spent {
		spend[k] = v
	}
	return Stats{
		Emitted:     e.emitted,
		Dropped:     e.dropped,
		Spend:       spend,
		WindowStart: e.windowStart,
		Rollovers:   e.rollovers,
	}
}
