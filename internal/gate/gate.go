package gate

import (
	"fmt"
	"time"
)

// #region gate
// Gate decides whether a closing break becomes a saved session.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate's thresholds.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Evaluate checks a break closing at end that started at start. Negative
// durations are clamped to zero. Manual closes skip the minimum but never
// save a non-positive duration.
func (g *Gate) Evaluate(start, end time.Time, manual bool) GateDecision {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}

	var vetoes []VetoSignal

	if d <= 0 {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoNonPositive,
			Reason: fmt.Sprintf("end %s not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)),
		})
	}

	if !manual && d < g.config.MinSessionDuration {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoTooShort,
			Reason: fmt.Sprintf("duration %s below minimum %s", d, g.config.MinSessionDuration),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      "reject",
			Reason:      fmt.Sprintf("suppressed: %s", vetoes[0].Reason),
			Duration:    d,
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	return GateDecision{
		Action:   "commit",
		Reason:   fmt.Sprintf("passed gate: duration=%s", d),
		Duration: d,
	}
}

// #endregion gate
