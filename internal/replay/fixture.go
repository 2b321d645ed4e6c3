package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// manualType marks a manual toggle in a fixture step.
const manualType = "manual"

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string            `json:"description"`
	MinSessionMs    int64             `json:"min_session_ms,omitempty"`
	TrackingEnabled *bool             `json:"tracking_enabled,omitempty"`
	StartCurrentMs  *int64            `json:"start_current_ms,omitempty"`
	Steps           []signals.Message `json:"steps"`
	Expected        []string          `json:"expected"` // outcome per step
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToReplayConfig applies the fixture's overrides to the defaults.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if f.MinSessionMs > 0 {
		cfg.GateConfig = gate.GateConfig{MinSessionDuration: time.Duration(f.MinSessionMs) * time.Millisecond}
	}
	if f.TrackingEnabled != nil {
		cfg.TrackingEnabled = *f.TrackingEnabled
	}
	return cfg
}

// StartCurrent is the break open before the first step, if any.
func (f *Fixture) StartCurrent() *state.CurrentSession {
	if f.StartCurrentMs == nil {
		return nil
	}
	return &state.CurrentSession{Start: time.UnixMilli(*f.StartCurrentMs)}
}

// ToSteps converts the recorded messages.
func (f *Fixture) ToSteps() ([]Step, error) {
	steps := make([]Step, 0, len(f.Steps))
	for i, m := range f.Steps {
		if m.Type == manualType {
			var at time.Time
			if m.When > 0 {
				at = time.UnixMilli(m.When)
			}
			steps = append(steps, Step{Signal: signals.Signal{Timestamp: at, Origin: signals.OriginManual}, Manual: true})
			continue
		}
		sig, err := m.Signal(signals.OriginRPC)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, Step{Signal: sig})
	}
	return steps, nil
}

// Run replays the fixture and reports every step whose outcome differs
// from the expectation.
func (f *Fixture) Run() ([]ReplayResult, []string, error) {
	steps, err := f.ToSteps()
	if err != nil {
		return nil, nil, err
	}
	results, err := Replay(f.StartCurrent(), steps, f.ToReplayConfig())
	if err != nil {
		return results, nil, err
	}

	var mismatches []string
	if len(f.Expected) != len(results) {
		mismatches = append(mismatches, fmt.Sprintf("expected %d outcomes, got %d", len(f.Expected), len(results)))
	}
	for i, r := range results {
		if i >= len(f.Expected) {
			break
		}
		if string(r.Outcome) != f.Expected[i] {
			mismatches = append(mismatches, fmt.Sprintf("step %d (%s): expected %s, got %s (%s)",
				i, r.Signal, f.Expected[i], r.Outcome, r.Reason))
		}
	}
	return results, mismatches, nil
}

// #endregion fixture-loader

// #region fixture-export

// FromTransitions rebuilds a fixture from the journal. Entries that failed
// with a storage error are skipped since they changed nothing.
func FromTransitions(description string, entries []logging.TransitionEntry, minSession time.Duration) (*Fixture, error) {
	f := &Fixture{
		Description:  description,
		MinSessionMs: minSession.Milliseconds(),
		Steps:        []signals.Message{},
		Expected:     []string{},
	}
	for _, e := range entries {
		if e.Outcome == "error" {
			continue
		}
		msg := signals.Message{Via: e.Origin}
		if !e.SignalAt.IsZero() {
			msg.When = e.SignalAt.UnixMilli()
		}
		if e.Origin == signals.OriginManual {
			msg.Type = manualType
			msg.Via = ""
		} else {
			kind, err := signals.ParseKind(e.SignalKind)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", e.ID, err)
			}
			msg.Type = kind.String()
		}
		f.Steps = append(f.Steps, msg)
		f.Expected = append(f.Expected, e.Outcome)
	}
	return f, nil
}

// #endregion fixture-export
