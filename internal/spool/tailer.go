package spool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// Sink receives decoded signals.
type Sink interface {
	Submit(sig signals.Signal) error
}

// Tailer follows *.jsonl files in a spool directory. Each complete line is a
// signals.Message; partial trailing lines wait for the rest of the write.
type Tailer struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	offsets   map[string]int64 // read offsets for incremental parsing
	sink      Sink
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewTailer watches dir, creating it if needed. Files already present are
// followed from their current end.
func NewTailer(dir string, sink Sink, logger *zap.Logger) (*Tailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	t := &Tailer{
		fsWatcher: fsw,
		dir:       dir,
		offsets:   make(map[string]int64),
		sink:      sink,
		logger:    logger,
	}

	existing, _ := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	for _, path := range existing {
		if info, err := os.Stat(path); err == nil {
			t.offsets[path] = info.Size()
		}
	}
	return t, nil
}

// Run handles filesystem events until ctx is cancelled, then closes the watcher.
func (t *Tailer) Run(ctx context.Context) error {
	defer t.fsWatcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return nil
			}
			t.handleFSEvent(event)

		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("spool watcher", zap.Error(err))
		}
	}
}

func (t *Tailer) handleFSEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		t.mu.Lock()
		t.offsets[event.Name] = 0
		t.mu.Unlock()
		t.drain(event.Name)
	case event.Op&fsnotify.Write == fsnotify.Write:
		t.drain(event.Name)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		t.mu.Lock()
		delete(t.offsets, event.Name)
		t.mu.Unlock()
	}
}

// drain reads complete lines past the stored offset and submits them.
func (t *Tailer) drain(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	offset := t.offsets[path]
	if info, err := f.Stat(); err == nil && info.Size() < offset {
		// truncated
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		t.logger.Warn("read spool file", zap.String("path", path), zap.Error(err))
		return
	}

	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return
	}
	for _, line := range bytes.Split(data[:end], []byte{'\n'}) {
		t.submitLine(path, bytes.TrimSpace(line))
	}
	t.offsets[path] = offset + int64(end) + 1
}

func (t *Tailer) submitLine(path string, line []byte) {
	if len(line) == 0 {
		return
	}
	var msg signals.Message
	if err := json.Unmarshal(line, &msg); err != nil {
		t.logger.Warn("bad spool line", zap.String("path", path), zap.Error(err))
		return
	}
	sig, err := msg.Signal(signals.OriginSpool)
	if err != nil {
		t.logger.Warn("bad spool signal", zap.String("path", path), zap.Error(err))
		return
	}
	if err := t.sink.Submit(sig); err != nil {
		t.logger.Warn("submit spool signal", zap.Stringer("signal", sig), zap.Error(err))
	}
}
