package rollout

import (
	"fmt"
	"testing"
)

func TestGate_StableDecisions(t *testing.T) {
	g := NewGate(map[string]int{FeatureTasksV2: 50})

	first := g.IsEnabled(FeatureTasksV2, "acme")
	for i := 0; i < 100; i++ {
		if got := g.IsEnabled(FeatureTasksV2, "acme"); got != first {
			t.Fatalf("decision flickered on call %d: %v then %v", i, first, got)
		}
	}
}

func TestGate_BoundaryPercentages(t *testing.T) {
	g := NewGate(map[string]int{"off": 0, "on": 100})

	for _, tenant := range []string{"a", "b", "c", "d"} {
		if g.IsEnabled("off", tenant) {
			t.Errorf("0%% rollout enabled tenant %q", tenant)
		}
		if !g.IsEnabled("on", tenant) {
			t.Errorf("100%% rollout excluded tenant %q", tenant)
		}
	}
}

func TestGate_RampOnlyAdds(t *testing.T) {
	g := NewGate(nil)
	g.SetRollout(FeatureEvolution, 30)

	// Collect the in-set at 30%, then ramp to 60% — nobody already in
	// may fall out.
	in30 := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tenant := fmt.Sprintf("tenant-%d", i)
		in30[tenant] = g.IsEnabled(FeatureEvolution, tenant)
	}

	g.SetRollout(FeatureEvolution, 60)
	for tenant, was := range in30 {
		if was && !g.IsEnabled(FeatureEvolution, tenant) {
			t.Errorf("tenant %q fell out of the rollout when percentage was raised", tenant)
		}
	}
}

func TestGate_DistributionRoughlyMatchesPercentage(t *testing.T) {
	g := NewGate(map[string]int{FeatureSelfCompete: 50})

	enabled := 0
	const n = 2000
	for i := 0; i < n; i++ {
		if g.IsEnabled(FeatureSelfCompete, fmt.Sprintf("tenant-%d", i)) {
			enabled++
		}
	}
	// FNV over 2000 tenants at 50% should land well inside 40–60%.
	if enabled < n*40/100 || enabled > n*60/100 {
		t.Errorf("enabled %d of %d at 50%% rollout — distribution badly skewed", enabled, n)
	}
}

func TestGate_RampCapsAt100(t *testing.T) {
	g := NewGate(map[string]int{FeatureEvolution: 95})
	if got := g.Ramp(FeatureEvolution, 10); got != 100 {
		t.Errorf("Ramp() past cap = %d, want 100", got)
	}
}

func TestGate_SetRolloutClamps(t *testing.T) {
	g := NewGate(nil)
	g.SetRollout("x", -5)
	if got := g.Rollout("x"); got != 0 {
		t.Errorf("Rollout() after SetRollout(-5) = %d, want 0", got)
	}
	g.SetRollout("x", 150)
	if got := g.Rollout("x"); got != 100 {
		t.Errorf("Rollout() after SetRollout(150) = %d, want 100", got)
	}
}

func TestGate_UnknownFeatureIsOff(t *testing.T) {
	g := NewGate(nil)
	if g.IsEnabled("never-configured", "acme") {
		t.Error("unknown feature should be off")
	}
}
