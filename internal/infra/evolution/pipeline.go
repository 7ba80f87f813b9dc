// Package evolution implements the self-compete evolution pipeline trigger.
//
// When a competition produces a champion with a decisive win-rate delta
// (and the error budget is healthy), the orchestrator hands the winning
// content here. The pipeline ramps the self-compete-evolution rollout and
// appends the champion to the training dataset. Hand-off is asynchronous
// and failure-isolated: a dataset write failure never reaches the
// competition result.
package evolution

import (
	"log"
	"sync"
	"time"

	"github.com/ampli-network/ampli/internal/infra/rollout"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls the evolution pipeline.
type Config struct {
	// RampStep is how many rollout percentage points each trigger adds
	// (default 5, capped at 100 by the gate).
	RampStep int

	// Buffer is the hand-off channel depth (default 64).
	Buffer int

	// MaxHistory bounds the in-memory trigger history (default 256).
	MaxHistory int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RampStep:   5,
		Buffer:     64,
		MaxHistory: 256,
	}
}

// ─── Hand-Off ───────────────────────────────────────────────────────────────

// Handoff is one champion promotion delivered to the pipeline.
type Handoff struct {
	CompetitionID string    `json:"competition_id"`
	Tenant        string    `json:"tenant"`
	Variant       string    `json:"variant"`
	Content       string    `json:"content"`
	Score         float64   `json:"score"`
	WinRateDelta  float64   `json:"win_rate_delta"`
	At            time.Time `json:"at"`
}

// Dataset is the training dataset sink champions are appended to.
type Dataset interface {
	AppendEvolutionSample(competitionID, tenant, variant, content string, score, delta float64) error
}

// ─── Pipeline ───────────────────────────────────────────────────────────────

// Pipeline ramps the evolution rollout and feeds the training dataset.
type Pipeline struct {
	mu      sync.Mutex
	config  Config
	gate    *rollout.Gate
	dataset Dataset

	ch        chan Handoff
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	history   []Handoff // ring buffer
	hIdx      int
	hFull     bool
	triggered int64
	dropped   int64
}

// NewPipeline creates an evolution pipeline. A nil dataset disables
// persistence (triggers still ramp the rollout).
func NewPipeline(cfg Config, gate *rollout.Gate, dataset Dataset) *Pipeline {
	if cfg.RampStep <= 0 {
		cfg.RampStep = 5
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = 256
	}
	p := &Pipeline{
		config:  cfg,
		gate:    gate,
		dataset: dataset,
		ch:      make(chan Handoff, cfg.Buffer),
		done:    make(chan struct{}),
		history: make([]Handoff, cfg.MaxHistory),
	}
	p.wg.Add(1)
	go p.drain()
	return p
}

// Trigger hands a champion off to the pipeline. Never blocks; a full
// buffer drops the hand-off with a log line.
func (p *Pipeline) Trigger(h Handoff) {
	if h.At.IsZero() {
		h.At = time.Now()
	}
	select {
	case p.ch <- h:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		log.Printf("[evolution] hand-off buffer full — dropped champion for competition %s", h.CompetitionID)
	}
}

func (p *Pipeline) drain() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			for {
				select {
				case h := <-p.ch:
					p.process(h)
				default:
					return
				}
			}
		case h := <-p.ch:
			p.process(h)
		}
	}
}

func (p *Pipeline) process(h Handoff) {
	newPct := p.gate.Ramp(rollout.FeatureEvolution, p.config.RampStep)

	if p.dataset != nil {
		err := p.dataset.AppendEvolutionSample(h.CompetitionID, h.Tenant, h.Variant, h.Content, h.Score, h.WinRateDelta)
		if err != nil {
			log.Printf("[evolution] dataset append failed for competition %s: %v", h.CompetitionID, err)
		}
	}

	p.mu.Lock()
	p.triggered++
	p.history[p.hIdx] = h
	p.hIdx++
	if p.hIdx >= p.config.MaxHistory {
		p.hIdx = 0
		p.hFull = true
	}
	p.mu.Unlock()

	log.Printf("[evolution] champion %s (delta %.3f) from competition %s — rollout now %d%%",
		h.Variant, h.WinRateDelta, h.CompetitionID, newPct)
}

// Close stops the drainer after flushing buffered hand-offs. Safe to
// call more than once.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// ─── Inspection ─────────────────────────────────────────────────────────────

// Recent returns the most recent n hand-offs (most recent first).
func (p *Pipeline) Recent(n int) []Handoff {
	p.mu.Lock()
	defer p.mu.Unlock()

	count := p.hIdx
	if p.hFull {
		count = p.config.MaxHistory
	}
	if n > count {
		n = count
	}
	if n <= 0 {
		return nil
	}

	out := make([]Handoff, n)
	idx := p.hIdx
	for i := 0; i < n; i++ {
		idx--
		if idx < 0 {
			idx = p.config.MaxHistory - 1
		}
		out[i] = p.history[idx]
	}
	return out
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	Triggered int64 `json:"triggered"`
	Dropped   int64 `json:"dropped"`
	Rollout   int   `json:"rollout_pct"`
}

// Stats returns current pipeline statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Triggered: p.triggered,
		Dropped:   p.dropped,
		Rollout:   p.gate.Rollout(rollout.FeatureEvolution),
	}
}
