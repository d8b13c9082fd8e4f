// Package session persists the logged-in user's identity and token.
//
// It replaces browser-global token storage with an explicit object owned by
// the application context. No authentication logic lives here: the token is
// stored and handed to the gateway as-is.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// storageKey is the key/value entry holding the session.
const storageKey = "session"

// Session identifies the logged-in user.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// Empty reports whether no user is logged in.
func (s Session) Empty() bool {
	return s.Token == ""
}

// Backend is the persistence the manager needs. *store.Store satisfies it.
type Backend interface {
	SetValue(ctx context.Context, key, value string) error
	Value(ctx context.Context, key string) (string, bool, error)
	DeleteValue(ctx context.Context, key string) error
}

// Manager caches the current session in memory and writes through to the
// backend on every change.
//
// Thread-safety: all methods are safe for concurrent use.
type Manager struct {
	backend Backend
	now     func() time.Time

	mu      sync.RWMutex
	current Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithNow sets the time source used for token expiry. Default: time.Now.
func WithNow(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager with no session loaded.
func NewManager(backend Backend, opts ...ManagerOption) *Manager {
	m := &Manager{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the persisted session, if any, into memory. A session whose
// token has expired is removed and Load reports logged out.
func (m *Manager) Load(ctx context.Context) (Session, error) {
	raw, found, err := m.backend.Value(ctx, storageKey)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if found {
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return Session{}, fmt.Errorf("load session: decode: %w", err)
		}
	}
	if s.Expired(m.now()) {
		if err := m.backend.DeleteValue(ctx, storageKey); err != nil {
			return Session{}, fmt.Errorf("load session: drop expired: %w", err)
		}
		s = Session{}
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return s, nil
}

// Save persists s and makes it current.
func (m *Manager) Save(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("save session: encode: %w", err)
	}
	if err := m.backend.SetValue(ctx, storageKey, string(data)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// Clear removes the persisted session.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.backend.DeleteValue(ctx, storageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	m.mu.Lock()
	m.current = Session{}
	m.mu.Unlock()
	return nil
}

// Current returns the in-memory session.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Token returns the current bearer token, or "" when logged out.
// Satisfies gateway.TokenSource.
func (m *Manager) Token() string {
	return m.Current().Token
}
