package spool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

type sinkRecorder struct {
	mu  sync.Mutex
	got []signals.Signal
}

func (s *sinkRecorder) Submit(sig signals.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, sig)
	return nil
}

func (s *sinkRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *sinkRecorder) all() []signals.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signals.Signal(nil), s.got...)
}

func startTailer(t *testing.T, dir string, sink Sink) {
	t.Helper()
	tl, err := NewTailer(dir, sink, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestTailer_NewFile(t *testing.T) {
	dir := t.TempDir()
	sink := &sinkRecorder{}
	startTailer(t, dir, sink)

	path := filepath.Join(dir, "page.jsonl")
	appendTo(t, path, `{"type":"break-start","when":1000,"via":"hook"}`+"\n")

	require.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	got := sink.all()[0]
	require.Equal(t, signals.StartHint, got.Kind)
	require.Equal(t, "hook", got.Origin)
}

func TestTailer_PartialLineWaits(t *testing.T) {
	dir := t.TempDir()
	sink := &sinkRecorder{}
	startTailer(t, dir, sink)

	path := filepath.Join(dir, "page.jsonl")
	appendTo(t, path, `{"type":"hidden"`)
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, sink.count())

	appendTo(t, path, "}\n\nnot json\n"+`{"type":"visible"}`+"\n")
	require.Eventually(t, func() bool { return sink.count() == 2 }, 3*time.Second, 20*time.Millisecond)
	got := sink.all()
	require.Equal(t, signals.HiddenHint, got[0].Kind)
	require.Equal(t, signals.OriginSpool, got[0].Origin)
	require.Equal(t, signals.VisibleHint, got[1].Kind)
}

func TestTailer_ExistingContentSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.jsonl")
	appendTo(t, path, `{"type":"start"}`+"\n")

	sink := &sinkRecorder{}
	startTailer(t, dir, sink)

	appendTo(t, path, `{"type":"hidden"}`+"\n")
	require.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 20*time.Millisecond)
	require.Equal(t, signals.HiddenHint, sink.all()[0].Kind)
}

func TestTailer_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &sinkRecorder{}
	startTailer(t, dir, sink)

	appendTo(t, filepath.Join(dir, "notes.txt"), `{"type":"start"}`+"\n")
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, sink.count())
}
