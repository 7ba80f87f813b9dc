package collab

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// ─── Simulated Collaborators ────────────────────────────────────────────────
// Deterministic stand-ins for the real news/share services. Latency and
// failure rates are injectable so breaker and fan-out behavior can be
// exercised without a network.

// SimConfig controls a simulated collaborator.
type SimConfig struct {
	Latency     time.Duration // fixed response latency (default 10ms)
	FailureRate float64       // [0,1] fraction of calls that fail
	Seed        int64         // rand seed; 0 means time-based
}

// Sim is a simulated collaborator. The signal it returns is a stable
// hash of the input content, so repeated calls score identically.
type Sim struct {
	name string
	cfg  SimConfig

	mu  sync.Mutex
	rng *rand.Rand

	calls    int64
	failures int64
}

// NewSim creates a simulated collaborator.
func NewSim(name string, cfg SimConfig) *Sim {
	if cfg.Latency <= 0 {
		cfg.Latency = 10 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sim{
		name: name,
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// NewNews returns the simulated news/sentiment collaborator.
// Fast and critical — callers give it a short timeout.
func NewNews(cfg SimConfig) *Sim { return NewSim("news", cfg) }

// NewShare returns the simulated per-platform share collaborator.
// Slow and best-effort — callers give it a longer timeout.
func NewShare(cfg SimConfig) *Sim { return NewSim("share", cfg) }

// Name returns the collaborator name.
func (s *Sim) Name() string { return s.name }

// Call simulates the collaborator with configured latency and failure
// injection. The returned signal is in [0,1), stable per content+variant
// +platform.
func (s *Sim) Call(ctx context.Context, in Input) (Output, error) {
	s.mu.Lock()
	s.calls++
	fail := s.rng.Float64() < s.cfg.FailureRate
	if fail {
		s.failures++
	}
	s.mu.Unlock()

	select {
	case <-time.After(s.cfg.Latency):
	case <-ctx.Done():
		return Output{}, ctx.Err()
	}

	if fail {
		return Output{}, fmt.Errorf("%s: simulated upstream failure", s.name)
	}

	return Output{
		Signal: stableSignal(in.Content + "|" + in.Variant + "|" + in.Platform),
		Payload: map[string]string{
			"collaborator": s.name,
			"platform":     in.Platform,
		},
	}, nil
}

// CallCount returns how many calls this collaborator has served.
func (s *Sim) CallCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stableSignal hashes text into [0,1).
func stableSignal(text string) float64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return float64(h.Sum64()%10_000) / 10_000
}
