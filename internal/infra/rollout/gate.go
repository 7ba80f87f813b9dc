// Package rollout implements percentage-based feature gating per tenant.
//
// A tenant's in/out decision is a deterministic hash of (featureKey, tenant)
// mapped into [0,100): the same tenant gets a stable decision for a given
// percentage, and ramping the percentage only flips tenants whose bucket
// crosses the new value — no flicker.
package rollout

import (
	"hash/fnv"
	"sync"
)

// Feature keys used by the orchestration engine.
const (
	FeatureTasksV2     = "tasks-v2"
	FeatureSelfCompete = "self-compete"
	FeatureEvolution   = "self-compete-evolution"
)

// Gate holds rollout percentages per feature key. Thread-safe.
type Gate struct {
	mu       sync.RWMutex
	rollouts map[string]int // featureKey → percentage [0,100]
}

// NewGate creates a feature gate with the given initial rollouts.
// Missing keys default to 0 (feature off).
func NewGate(initial map[string]int) *Gate {
	rollouts := make(map[string]int, len(initial))
	for k, v := range initial {
		rollouts[k] = clamp(v)
	}
	return &Gate{rollouts: rollouts}
}

func clamp(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// bucket maps (featureKey, tenant) into [0,100) with FNV-1a.
func bucket(featureKey, tenant string) int {
	h := fnv.New32a()
	h.Write([]byte(featureKey))
	h.Write([]byte{':'})
	h.Write([]byte(tenant))
	return int(h.Sum32() % 100)
}

// IsEnabled reports whether the tenant is rolled into the feature.
func (g *Gate) IsEnabled(featureKey, tenant string) bool {
	g.mu.RLock()
	pct := g.rollouts[featureKey]
	g.mu.RUnlock()

	if pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	return bucket(featureKey, tenant) < pct
}

// SetRollout sets the rollout percentage for a feature (clamped to [0,100]).
func (g *Gate) SetRollout(featureKey string, pct int) {
	g.mu.Lock()
	g.rollouts[featureKey] = clamp(pct)
	g.mu.Unlock()
}

// Rollout returns the current percentage for a feature (0 if unknown).
func (g *Gate) Rollout(featureKey string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rollouts[featureKey]
}

// Ramp raises the rollout by step, capped at 100. Returns the new value.
// A no-op when the feature is already fully rolled out.
func (g *Gate) Ramp(featureKey string, step int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rollouts[featureKey] = clamp(g.rollouts[featureKey] + step)
	return g.rollouts[featureKey]
}

// Snapshot returns a copy of all rollout percentages.
func (g *Gate) Snapshot() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int, len(g.rollouts))
	for k, v := range g.rollouts {
		out[k] = v
	}
	return out
}
