package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/engine"
	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// #region types
// Step is one recorded input: an observed signal or a manual toggle.
type Step struct {
	Signal signals.Signal
	Manual bool
}

// ReplayConfig bundles the gate config and the tracking flag for a run.
type ReplayConfig struct {
	GateConfig      gate.GateConfig
	TrackingEnabled bool
}

// DefaultReplayConfig returns the daemon defaults with tracking on.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		GateConfig:      gate.DefaultGateConfig(),
		TrackingEnabled: true,
	}
}

// ReplayResult captures what one step did.
type ReplayResult struct {
	Index   int
	Signal  signals.Signal
	Manual  bool
	Outcome engine.Outcome
	Reason  string
	Session *state.Session // set when saved
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps int
	Started    int
	Saved      int
	Suppressed int
	Ignored    int
	Total      time.Duration // sum of saved durations
}

// #endregion types

// #region replay
// Replay runs steps through a fresh machine backed by a MemoryStore. start,
// when non-nil, is the break already open before the first step.
func Replay(start *state.CurrentSession, steps []Step, config ReplayConfig) ([]ReplayResult, error) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	if start != nil {
		if err := store.SetCurrent(ctx, *start); err != nil {
			return nil, fmt.Errorf("seed current: %w", err)
		}
	}
	if err := store.SetTrackingEnabled(ctx, config.TrackingEnabled); err != nil {
		return nil, fmt.Errorf("seed tracking: %w", err)
	}

	m := engine.NewMachine(store, gate.NewGate(config.GateConfig), nil)
	if err := m.Restore(ctx); err != nil {
		return nil, err
	}

	results := make([]ReplayResult, 0, len(steps))
	for i, step := range steps {
		var res engine.Result
		var err error
		if step.Manual {
			res, err = m.Manual(ctx, step.Signal.Timestamp)
		} else {
			res, err = m.Process(ctx, step.Signal)
		}
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i, err)
		}
		results = append(results, ReplayResult{
			Index:   i,
			Signal:  res.Signal,
			Manual:  step.Manual,
			Outcome: res.Outcome,
			Reason:  res.Reason,
			Session: res.Session,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case engine.OutcomeStarted:
			s.Started++
		case engine.OutcomeSaved:
			s.Saved++
			if r.Session != nil {
				s.Total += r.Session.Duration()
			}
		case engine.OutcomeSuppressed:
			s.Suppressed++
		default:
			s.Ignored++
		}
	}
	return s
}

// #endregion replay
