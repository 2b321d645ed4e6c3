package logging

import "time"

// #region transition-entry
// TransitionEntry is a single row in the transition_log table: one processed signal
// and what the state machine did with it.
type TransitionEntry struct {
	ID         int64     `json:"id,omitempty"`
	SignalKind string    `json:"signal_kind"`
	Origin     string    `json:"origin,omitempty"`
	SignalAt   time.Time `json:"signal_at,omitempty"` // zero when the signal carried no timestamp
	Outcome    string    `json:"outcome"`             // see engine.Outcome
	Reason     string    `json:"reason,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// #endregion transition-entry
