package gate

import "time"

// #region veto-type
// VetoType enumerates the reasons a closing break is not saved.
type VetoType string

const (
	VetoNonPositive VetoType = "non_positive_duration"
	VetoTooShort    VetoType = "below_minimum"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for close decisions.
type GateConfig struct {
	MinSessionDuration time.Duration // shorter closes are suppressed as noise
}

// DefaultGateConfig returns the 30 second minimum.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinSessionDuration: 30 * time.Second,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Duration    time.Duration // clamped to >= 0
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
}

// Commit reports whether the session should be saved.
func (d GateDecision) Commit() bool {
	return d.Action == "commit"
}

// #endregion gate-decision
