package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

var (
	ErrQueueFull = errors.New("signal queue full")
	ErrStopped   = errors.New("engine stopped")
)

// #region notifier
// Notifier is told about every result that opened or closed a break.
type Notifier interface {
	Notify(res Result)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Result)

func (f NotifierFunc) Notify(res Result) { f(res) }

// #endregion notifier

// #region config
// Config sizes the signal queue.
type Config struct {
	QueueSize int
}

// DefaultConfig returns a queue deep enough for a burst from every observer.
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Option customises an Engine.
type Option func(*Engine)

// WithNotifier adds a transition listener.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifiers = append(e.notifiers, n) }
}

// WithJournal records every processed signal in the transition_log table of db.
func WithJournal(db *sql.DB) Option {
	return func(e *Engine) { e.journal = db }
}

// #endregion config

// #region engine
type request struct {
	sig    signals.Signal
	manual bool
	reply  chan reply // nil for fire-and-forget
}

type reply struct {
	res Result
	err error
}

// Engine owns the machine and serialises every signal source through one queue.
type Engine struct {
	machine   *Machine
	logger    *zap.Logger
	queue     chan request
	done      chan struct{}
	stopOnce  sync.Once
	notifiers []Notifier
	journal   *sql.DB
	current   atomic.Pointer[state.CurrentSession]
}

// New creates an engine around machine. Run must be called to start processing.
func New(machine *Machine, config Config, logger *zap.Logger, opts ...Option) *Engine {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		machine: machine,
		logger:  logger,
		queue:   make(chan request, config.QueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current is the open break as of the last processed signal.
func (e *Engine) Current() *state.CurrentSession {
	return e.current.Load()
}

// #endregion engine

// #region submit
// Submit enqueues a signal without waiting. It fails fast when the queue is
// full or the engine has stopped.
func (e *Engine) Submit(sig signals.Signal) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.queue <- request{sig: sig}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait enqueues a signal and waits for its result.
func (e *Engine) SubmitWait(ctx context.Context, sig signals.Signal) (Result, error) {
	return e.roundTrip(ctx, request{sig: sig})
}

// Manual requests a manual start or stop at the given time (zero means now).
func (e *Engine) Manual(ctx context.Context, at time.Time) (Result, error) {
	return e.roundTrip(ctx, request{
		sig:    signals.Signal{Timestamp: at, Origin: signals.OriginManual},
		manual: true,
	})
}

func (e *Engine) roundTrip(ctx context.Context, req request) (Result, error) {
	req.reply = make(chan reply, 1)
	select {
	case <-e.done:
		return Result{}, ErrStopped
	default:
	}
	select {
	case e.queue <- req:
	case <-e.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-e.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// #endregion submit

// #region run
// Run restores the machine and drains the queue until ctx is cancelled.
// Signals still queued at shutdown are dropped.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopOnce.Do(func() { close(e.done) })

	if err := e.machine.Restore(ctx); err != nil {
		e.logger.Warn("restore failed, starting from memory", zap.Error(err))
	}
	e.current.Store(e.machine.Current())

	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-e.queue:
			e.handle(ctx, req)
		}
	}
}

func (e *Engine) handle(ctx context.Context, req request) {
	var res Result
	var err error
	if req.manual {
		res, err = e.machine.Manual(ctx, req.sig.Timestamp)
	} else {
		res, err = e.machine.Process(ctx, req.sig)
	}

	if err != nil {
		e.logger.Error("process signal",
			zap.Stringer("signal", req.sig), zap.Bool("manual", req.manual), zap.Error(err))
		e.record(logging.TransitionEntry{
			SignalKind: req.sig.Kind.String(),
			Origin:     req.sig.Origin,
			SignalAt:   req.sig.Timestamp,
			Outcome:    "error",
			Reason:     err.Error(),
		})
	} else {
		e.observe(res)
	}

	e.current.Store(e.machine.Current())
	if req.reply != nil {
		req.reply <- reply{res: res, err: err}
	}
}

func (e *Engine) observe(res Result) {
	fields := []zap.Field{
		zap.String("outcome", string(res.Outcome)),
		zap.Stringer("signal", res.Signal),
	}
	if res.Session != nil {
		fields = append(fields, zap.String("session", res.Session.ID), zap.Duration("duration", res.Session.Duration()))
	}
	if res.Outcome.Changed() {
		e.logger.Info("break transition", fields...)
	} else {
		e.logger.Debug("signal ignored", append(fields, zap.String("reason", res.Reason))...)
	}

	entry := logging.TransitionEntry{
		SignalKind: res.Signal.Kind.String(),
		Origin:     res.Signal.Origin,
		SignalAt:   res.Signal.Timestamp,
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
	}
	if res.Session != nil {
		entry.SessionID = res.Session.ID
	}
	e.record(entry)

	if res.Outcome.Changed() {
		for _, n := range e.notifiers {
			n.Notify(res)
		}
	}
}

func (e *Engine) record(entry logging.TransitionEntry) {
	if e.journal == nil {
		return
	}
	if err := logging.LogTransition(e.journal, entry); err != nil {
		e.logger.Warn("write transition log", zap.Error(err))
	}
}

// #endregion run
