package evolution

import (
	"errors"
	"sync"
	"testing"

	"github.com/ampli-network/ampli/internal/infra/rollout"
)

type memDataset struct {
	mu      sync.Mutex
	samples int
	fail    bool
}

func (d *memDataset) AppendEvolutionSample(_, _, _, _ string, _, _ float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("dataset unavailable")
	}
	d.samples++
	return nil
}

func (d *memDataset) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samples
}

func TestPipeline_TriggerRampsRollout(t *testing.T) {
	gate := rollout.NewGate(map[string]int{rollout.FeatureEvolution: 10})
	ds := &memDataset{}
	p := NewPipeline(DefaultConfig(), gate, ds)

	p.Trigger(Handoff{CompetitionID: "comp-1", Tenant: "acme", Variant: "bold", Content: "winner", Score: 0.95, WinRateDelta: 0.07})
	p.Close() // flush

	if got := gate.Rollout(rollout.FeatureEvolution); got != 15 {
		t.Errorf("rollout after trigger = %d%%, want 15%%", got)
	}
	if ds.count() != 1 {
		t.Errorf("dataset samples = %d, want 1", ds.count())
	}
	if st := p.Stats(); st.Triggered != 1 {
		t.Errorf("Stats().Triggered = %d, want 1", st.Triggered)
	}
}

func TestPipeline_RampCapsAt100(t *testing.T) {
	gate := rollout.NewGate(map[string]int{rollout.FeatureEvolution: 98})
	p := NewPipeline(DefaultConfig(), gate, nil)

	p.Trigger(Handoff{CompetitionID: "comp-1"})
	p.Close()

	if got := gate.Rollout(rollout.FeatureEvolution); got != 100 {
		t.Errorf("rollout = %d%%, want capped 100%%", got)
	}
}

func TestPipeline_DatasetFailureIsIsolated(t *testing.T) {
	gate := rollout.NewGate(nil)
	ds := &memDataset{fail: true}
	p := NewPipeline(DefaultConfig(), gate, ds)

	// Must not panic; rollout still ramps.
	p.Trigger(Handoff{CompetitionID: "comp-1"})
	p.Close()

	if got := gate.Rollout(rollout.FeatureEvolution); got != 5 {
		t.Errorf("rollout = %d%%, want 5%% despite dataset failure", got)
	}
}

func TestPipeline_RecentHistory(t *testing.T) {
	gate := rollout.NewGate(nil)
	p := NewPipeline(Config{MaxHistory: 4}, gate, nil)

	for _, id := range []string{"a", "b", "c"} {
		p.Trigger(Handoff{CompetitionID: id})
	}
	p.Close()

	recent := p.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(recent))
	}
	if recent[0].CompetitionID != "c" || recent[1].CompetitionID != "b" {
		t.Errorf("Recent(2) = [%s %s], want [c b]", recent[0].CompetitionID, recent[1].CompetitionID)
	}
}
