package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// #region store
// Store is the persistence the machine needs. Each call is atomic.
// Current returns nil when no break is open.
type Store interface {
	Current(ctx context.Context) (*state.CurrentSession, error)
	SetCurrent(ctx context.Context, cur state.CurrentSession) error
	ClearCurrent(ctx context.Context) error
	AppendSession(ctx context.Context, sess state.Session) error
	CommitSession(ctx context.Context, sess *state.Session) error
	TrackingEnabled(ctx context.Context) (bool, error)
}

// #endregion store

// #region outcome
// Outcome names what a signal did to the machine.
type Outcome string

const (
	OutcomeDisabled       Outcome = "disabled"
	OutcomeStarted        Outcome = "started"
	OutcomeIgnoredInitial Outcome = "ignored_initial"
	OutcomeOrphan         Outcome = "orphan"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeSaved          Outcome = "saved"
	OutcomeSuppressed     Outcome = "suppressed"
)

// Changed reports whether the outcome moved the machine between Idle and Active.
func (o Outcome) Changed() bool {
	return o == OutcomeStarted || o == OutcomeSaved || o == OutcomeSuppressed
}

// Result describes one processed signal.
type Result struct {
	Outcome Outcome               `json:"outcome"`
	Signal  signals.Signal        `json:"signal"`            // timestamp resolved
	Session *state.Session        `json:"session,omitempty"` // set when saved
	Current *state.CurrentSession `json:"current,omitempty"` // after processing
	Reason  string                `json:"reason,omitempty"`
}

// #endregion outcome

// #region machine
// Machine is the Idle/Active break state machine. It is not safe for
// concurrent use; Engine serialises access.
type Machine struct {
	store   Store
	gate    *gate.Gate
	logger  *zap.Logger
	now     func() time.Time
	current *state.CurrentSession
}

// NewMachine creates a machine. Call Restore before the first signal.
func NewMachine(store Store, g *gate.Gate, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{store: store, gate: g, logger: logger, now: time.Now}
}

// SetClock replaces the clock used for signals without a timestamp.
func (m *Machine) SetClock(now func() time.Time) {
	m.now = now
}

// Restore rehydrates the in-memory pointer from the persisted marker.
func (m *Machine) Restore(ctx context.Context) error {
	cur, err := m.store.Current(ctx)
	if err != nil {
		return fmt.Errorf("restore current: %w", err)
	}
	m.current = cur
	if cur != nil {
		m.logger.Info("restored open break",
			zap.Time("start", cur.Start), zap.String("origin", cur.Origin))
	}
	return nil
}

// Current returns a copy of the open break, or nil.
func (m *Machine) Current() *state.CurrentSession {
	if m.current == nil {
		return nil
	}
	cur := *m.current
	return &cur
}

// #endregion machine

// #region process
// Process applies one signal. A storage error leaves the machine unchanged
// and is returned wrapped.
func (m *Machine) Process(ctx context.Context, sig signals.Signal) (Result, error) {
	if sig.Timestamp.IsZero() {
		sig.Timestamp = m.now()
	}
	sig.Timestamp = toMillis(sig.Timestamp)

	enabled, err := m.store.TrackingEnabled(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read tracking flag: %w", err)
	}
	if !enabled {
		return m.result(OutcomeDisabled, sig, nil, "tracking disabled"), nil
	}

	m.sync(ctx)

	switch sig.Kind {
	case signals.StartHint, signals.VisibleHint:
		if m.current != nil {
			return m.result(OutcomeDuplicate, sig, nil, "break already open"), nil
		}
		if sig.Kind == signals.VisibleHint && sig.Origin == signals.OriginInitial {
			return m.result(OutcomeIgnoredInitial, sig, nil, "tag visible at load"), nil
		}
		return m.open(ctx, sig)
	case signals.HiddenHint:
		return m.close(ctx, sig, false)
	default:
		return Result{}, fmt.Errorf("unknown signal kind %d", sig.Kind)
	}
}

// Manual toggles the break on explicit user request: Idle starts, Active
// closes and saves regardless of the minimum. The tracking flag is not consulted.
func (m *Machine) Manual(ctx context.Context, at time.Time) (Result, error) {
	if at.IsZero() {
		at = m.now()
	}
	at = toMillis(at)
	m.sync(ctx)
	if m.current == nil {
		return m.open(ctx, signals.Signal{Kind: signals.StartHint, Timestamp: at, Origin: signals.OriginManual})
	}
	return m.close(ctx, signals.Signal{Kind: signals.HiddenHint, Timestamp: at, Origin: signals.OriginManual}, true)
}

// sync adopts the persisted marker when it can be read. On failure the
// in-memory pointer stands and the following write reports the outage.
func (m *Machine) sync(ctx context.Context) {
	cur, err := m.store.Current(ctx)
	if err != nil {
		m.logger.Warn("read current break failed, using memory", zap.Error(err))
		return
	}
	m.current = cur
}

func (m *Machine) open(ctx context.Context, sig signals.Signal) (Result, error) {
	cur := state.CurrentSession{Start: sig.Timestamp, Origin: sig.Origin}
	if err := m.store.SetCurrent(ctx, cur); err != nil {
		return Result{}, fmt.Errorf("persist start: %w", err)
	}
	m.current = &cur
	return m.result(OutcomeStarted, sig, nil, ""), nil
}

func (m *Machine) close(ctx context.Context, sig signals.Signal, manual bool) (Result, error) {
	if m.current == nil {
		m.logger.Debug("orphan end signal", zap.Stringer("signal", sig))
		return m.result(OutcomeOrphan, sig, nil, "no open break"), nil
	}

	decision := m.gate.Evaluate(m.current.Start, sig.Timestamp, manual)
	if !decision.Commit() {
		if err := m.store.CommitSession(ctx, nil); err != nil {
			return Result{}, fmt.Errorf("clear current: %w", err)
		}
		m.current = nil
		return m.result(OutcomeSuppressed, sig, nil, decision.Reason), nil
	}

	sess := &state.Session{
		Start:  m.current.Start,
		End:    sig.Timestamp,
		Origin: sig.Origin,
		Manual: manual,
	}
	if err := m.store.CommitSession(ctx, sess); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}
	m.current = nil
	return m.result(OutcomeSaved, sig, sess, decision.Reason), nil
}

// toMillis drops sub-millisecond precision so the gate judges the same
// instants the store persists.
func toMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).In(t.Location())
}

func (m *Machine) result(o Outcome, sig signals.Signal, sess *state.Session, reason string) Result {
	return Result{
		Outcome: o,
		Signal:  sig,
		Session: sess,
		Current: m.Current(),
		Reason:  reason,
	}
}

// #endregion process
