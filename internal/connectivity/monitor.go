// Package connectivity tracks whether the Story API is reachable.
//
// Monitor holds the cached state and fans out edge notifications. Prober is
// the signal source: it probes the API and feeds Monitor.Set.
package connectivity

import (
	"sync"

	"go.uber.org/zap"
)

// Listener is called with the new state after every real transition.
type Listener func(online bool)

type subscription struct {
	id int
	fn Listener
}

// Monitor holds one boolean: the last known connectivity state.
//
// Only edges notify. Setting the state it already has is a no-op, so a
// platform that repeats "online" does not cause repeated syncs.
//
// Thread-safety: all methods are safe for concurrent use. Listeners and the
// reconnect hook run on the caller's goroutine of Set, in subscription
// order, and must not call Set themselves.
type Monitor struct {
	dispatch sync.Mutex // serializes Set so notifications arrive in edge order

	mu          sync.Mutex
	online      bool
	nextID      int
	subs        []subscription
	onReconnect func()

	logger *zap.Logger
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithReconnectHook sets the function called once per offline→online edge.
func WithReconnectHook(fn func()) MonitorOption {
	return func(m *Monitor) {
		m.onReconnect = fn
	}
}

// WithMonitorLogger sets the logger. Default: no-op.
func WithMonitorLogger(l *zap.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = l
	}
}

// NewMonitor creates a monitor starting in the given state.
func NewMonitor(online bool, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		online: online,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetReconnectHook replaces the reconnect hook. There is at most one hook;
// pass nil to remove it.
func (m *Monitor) SetReconnectHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = fn
}

// IsOnline returns the cached state. It never probes.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a platform signal and reports whether the state changed.
// On a change every subscriber is notified exactly once; on an
// offline→online change the reconnect hook also runs exactly once.
func (m *Monitor) Set(online bool) bool {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]subscription, len(m.subs))
	copy(subs, m.subs)
	hook := m.onReconnect
	m.mu.Unlock()

	m.logger.Info("connectivity changed", zap.Bool("online", online))

	for _, s := range subs {
		s.fn(online)
	}
	if online && hook != nil {
		hook()
	}
	return true
}

// Subscribe registers fn for future transitions. The returned function
// removes the subscription and is safe to call more than once.
func (m *Monitor) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}
