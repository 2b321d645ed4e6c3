package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by replay and tests.
type MemoryStore struct {
	mu       sync.Mutex
	current  *CurrentSession
	sessions []Session
	tracking *bool
}

// NewMemoryStore returns an empty store with tracking enabled.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Current(ctx context.Context) (*CurrentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	cur := *m.current
	return &cur, nil
}

func (m *MemoryStore) SetCurrent(ctx context.Context, cur CurrentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &cur
	return nil
}

func (m *MemoryStore) ClearCurrent(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func (m *MemoryStore) AppendSession(ctx context.Context, sess Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(&sess)
}

func (m *MemoryStore) CommitSession(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess != nil {
		if err := m.appendLocked(sess); err != nil {
			return err
		}
	}
	m.current = nil
	return nil
}

func (m *MemoryStore) appendLocked(sess *Session) error {
	if !sess.End.After(sess.Start) {
		return fmt.Errorf("append session: %w", ErrInvalidSession)
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	m.sessions = append(m.sessions, *sess)
	return nil
}

// Sessions mirrors Store.Sessions.
func (m *MemoryStore) Sessions(ctx context.Context, limit int) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.sessions
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	return append([]Session(nil), src...), nil
}

// SessionsSince mirrors Store.SessionsSince.
func (m *MemoryStore) SessionsSince(ctx context.Context, since time.Time) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if !s.Start.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) TrackingEnabled(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tracking == nil {
		return true, nil
	}
	return *m.tracking, nil
}

func (m *MemoryStore) SetTrackingEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking = &enabled
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
	m.current = nil
	return nil
}
