package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers

type recorder struct {
	mu  sync.Mutex
	got []Outcome
}

func (r *recorder) Notify(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res.Outcome)
}

func (r *recorder) outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.got...)
}

// startEngine runs e until the test ends.
func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func newTestEngine(t *testing.T, store Store, cfg Config, opts ...Option) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := NewMachine(store, gate.NewGate(gate.DefaultGateConfig()), logger)
	return New(m, cfg, logger, opts...)
}

// #endregion helpers

// #region submit-tests

func TestEngine_SubmitThenWait(t *testing.T) {
	store := state.NewMemoryStore()
	rec := &recorder{}
	e := newTestEngine(t, store, DefaultConfig(), WithNotifier(rec))
	startEngine(t, e)

	if err := e.Submit(sig(signals.StartHint, 0, signals.OriginHook)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := e.Submit(sig(signals.VisibleHint, time.Second, signals.OriginMutation)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := e.SubmitWait(context.Background(), sig(signals.HiddenHint, time.Minute, signals.OriginMutation))
	if err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	if res.Outcome != OutcomeSaved {
		t.Fatalf("expected saved, got %s", res.Outcome)
	}

	got := rec.outcomes()
	if len(got) != 2 || got[0] != OutcomeStarted || got[1] != OutcomeSaved {
		t.Errorf("expected notifier to see [started saved], got %v", got)
	}
	if e.Current() != nil {
		t.Error("expected engine snapshot idle")
	}
}

func TestEngine_QueueFull(t *testing.T) {
	e := newTestEngine(t, state.NewMemoryStore(), Config{QueueSize: 1})

	if err := e.Submit(sig(signals.StartHint, 0, signals.OriginHook)); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if err := e.Submit(sig(signals.StartHint, 0, signals.OriginHook)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestEngine_Stopped(t *testing.T) {
	e := newTestEngine(t, state.NewMemoryStore(), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := e.Submit(sig(signals.StartHint, 0, signals.OriginHook)); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if _, err := e.SubmitWait(context.Background(), sig(signals.StartHint, 0, signals.OriginHook)); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped from SubmitWait, got %v", err)
	}
}

func TestEngine_StorageErrorReachesCaller(t *testing.T) {
	store := &flakyStore{MemoryStore: state.NewMemoryStore(), failWrites: true}
	e := newTestEngine(t, store, DefaultConfig())
	startEngine(t, e)

	_, err := e.SubmitWait(context.Background(), sig(signals.StartHint, 0, signals.OriginHook))
	if !errors.Is(err, errOffline) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if e.Current() != nil {
		t.Error("expected engine to stay idle")
	}
}

func TestEngine_ConcurrentSources(t *testing.T) {
	store := state.NewMemoryStore()
	e := newTestEngine(t, store, Config{QueueSize: 64})
	startEngine(t, e)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e.SubmitWait(context.Background(), sig(signals.StartHint, time.Duration(i)*time.Second, signals.OriginWS))
		}(i)
	}
	wg.Wait()

	res, err := e.SubmitWait(context.Background(), sig(signals.HiddenHint, time.Hour, signals.OriginMutation))
	if err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	if res.Outcome != OutcomeSaved {
		t.Fatalf("expected saved, got %s", res.Outcome)
	}
	saved, _ := store.Sessions(context.Background(), 0)
	if len(saved) != 1 {
		t.Fatalf("expected exactly one session from concurrent starts, got %d", len(saved))
	}
}

// #endregion submit-tests

// #region lifecycle-tests

func TestEngine_RestoresOnRun(t *testing.T) {
	store := state.NewMemoryStore()
	store.SetCurrent(context.Background(), state.CurrentSession{Start: t0})
	e := newTestEngine(t, store, DefaultConfig())
	startEngine(t, e)

	res, err := e.SubmitWait(context.Background(), sig(signals.HiddenHint, 2*time.Minute, signals.OriginUnload))
	if err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	if res.Outcome != OutcomeSaved || res.Session.Duration() != 2*time.Minute {
		t.Fatalf("expected 2m session, got %+v", res)
	}
}

func TestEngine_Manual(t *testing.T) {
	e := newTestEngine(t, state.NewMemoryStore(), DefaultConfig())
	startEngine(t, e)
	ctx := context.Background()

	res, err := e.Manual(ctx, t0)
	if err != nil || res.Outcome != OutcomeStarted {
		t.Fatalf("expected manual start, got %+v err=%v", res, err)
	}
	if cur := e.Current(); cur == nil || !cur.Start.Equal(t0) {
		t.Fatalf("expected snapshot at t0, got %+v", cur)
	}
	res, err = e.Manual(ctx, at(time.Second))
	if err != nil || res.Outcome != OutcomeSaved {
		t.Fatalf("expected manual save, got %+v err=%v", res, err)
	}
}

// #endregion lifecycle-tests

// #region journal-tests

func TestEngine_JournalsEverySignal(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := newTestEngine(t, store, DefaultConfig(), WithJournal(store.DB()))
	startEngine(t, e)
	ctx := context.Background()

	for _, s := range []signals.Signal{
		sig(signals.HiddenHint, 0, signals.OriginMutation),
		sig(signals.StartHint, time.Second, signals.OriginHook),
		sig(signals.HiddenHint, time.Minute, signals.OriginMutation),
	} {
		if _, err := e.SubmitWait(ctx, s); err != nil {
			t.Fatalf("SubmitWait: %v", err)
		}
	}

	entries, err := logging.RecentTransitions(store.DB(), 10)
	if err != nil {
		t.Fatalf("RecentTransitions: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []string{"orphan", "started", "saved"}
	for i, e := range entries {
		if e.Outcome != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Outcome)
		}
	}
	if entries[2].SessionID == "" {
		t.Error("expected saved entry to carry the session id")
	}
}

// #endregion journal-tests
