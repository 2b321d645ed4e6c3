package replay

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

var base = time.UnixMilli(1718000000000)

func step(kind signals.Kind, offset time.Duration) Step {
	return Step{Signal: signals.Signal{Kind: kind, Timestamp: base.Add(offset), Origin: signals.OriginMutation}}
}

func manual(offset time.Duration) Step {
	return Step{Signal: signals.Signal{Timestamp: base.Add(offset)}, Manual: true}
}

func outcomes(results []ReplayResult) []engine.Outcome {
	out := make([]engine.Outcome, len(results))
	for i, r := range results {
		out[i] = r.Outcome
	}
	return out
}

func TestReplay_SaveAndSuppress(t *testing.T) {
	results, err := Replay(nil, []Step{
		step(signals.StartHint, 0),
		step(signals.HiddenHint, time.Minute),
		step(signals.StartHint, 2*time.Minute),
		step(signals.HiddenHint, 2*time.Minute+10*time.Second),
	}, DefaultReplayConfig())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	want := []engine.Outcome{engine.OutcomeStarted, engine.OutcomeSaved, engine.OutcomeStarted, engine.OutcomeSuppressed}
	got := outcomes(results)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if results[1].Session == nil || results[1].Session.Duration() != time.Minute {
		t.Errorf("expected 1m session, got %+v", results[1].Session)
	}
}

func TestReplay_StartCurrentAndGateConfig(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.GateConfig = gate.GateConfig{MinSessionDuration: 5 * time.Second}

	results, err := Replay(&state.CurrentSession{Start: base}, []Step{
		step(signals.HiddenHint, 6*time.Second),
	}, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Outcome != engine.OutcomeSaved {
		t.Fatalf("expected saved with 5s minimum, got %s", results[0].Outcome)
	}
}

func TestReplay_TrackingOffManualStillRecords(t *testing.T) {
	cfg := DefaultReplayConfig()
	cfg.TrackingEnabled = false

	results, err := Replay(nil, []Step{
		step(signals.StartHint, 0),
		manual(time.Second),
		manual(3 * time.Second),
	}, cfg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	got := outcomes(results)
	if got[0] != engine.OutcomeDisabled || got[1] != engine.OutcomeStarted || got[2] != engine.OutcomeSaved {
		t.Fatalf("unexpected outcomes %v", got)
	}
	if !results[2].Manual || !results[2].Session.Manual {
		t.Error("expected manual flag on the saved session")
	}

	sum := Summarize(results)
	if sum.Ignored != 1 || sum.Saved != 1 || sum.Total != 2*time.Second {
		t.Errorf("unexpected summary %+v", sum)
	}
}
