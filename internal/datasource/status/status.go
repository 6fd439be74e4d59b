// Package status implements the data-source status manager (spec.md §4.12):
// a single state machine shared by every data-source implementation, so
// hosts and the background-sync coordinator observe readiness uniformly.
// Grounded on original_source/.../data_sources/data_source_status_manager.cpp.
package status

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the data source's current connectivity state.
type State string

const (
	Initializing State = "initializing"
	Valid        State = "valid"
	Interrupted  State = "interrupted"
	Off          State = "off"
	SetOffline   State = "setOffline"
)

// ErrorKind classifies the last observed error, if any.
type ErrorKind string

const (
	ErrNetworkError  ErrorKind = "networkError"
	ErrErrorResponse ErrorKind = "errorResponse"
	ErrInvalidData   ErrorKind = "invalidData"
	ErrStoreError    ErrorKind = "storeError"
	ErrUnknown       ErrorKind = "unknown"
)

// LastError records the most recent data-source error.
type LastError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Time       time.Time
}

// Status is an immutable snapshot of the manager's state.
type Status struct {
	State      State
	StateSince time.Time
	LastError  *LastError
}

// Listener is invoked on every state change (equal-to-equal transitions are
// suppressed).
type Listener func(Status)

// Manager serializes state transitions and reads with a mutex; listener
// invocation happens outside the lock (spec.md §4.12 concurrency note).
type Manager struct {
	mu         sync.Mutex
	state      State
	stateSince time.Time
	lastError  *LastError
	listeners  map[int]Listener
	nextID     int
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// NewManager constructs a Manager starting in Initializing.
func NewManager(logger *zap.SugaredLogger) *Manager {
	return &Manager{
		state:      Initializing,
		stateSince: time.Now(),
		listeners:  make(map[int]Listener),
		logger:     logger,
		now:        time.Now,
	}
}

// AddListener registers a listener and returns a function that removes it.
func (m *Manager) AddListener(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// CurrentStatus returns the current snapshot.
func (m *Manager) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Status {
	return Status{State: m.state, StateSince: m.stateSince, LastError: m.lastError}
}

// SetState requests a transition to newState, with no error context.
func (m *Manager) SetState(newState State) {
	m.SetStateWithError(newState, nil)
}

// SetStateWithError requests a transition to newState, recording err (if
// non-nil) as the new last error regardless of whether the state itself
// changed. A request to transition to Interrupted while Initializing is
// suppressed — an interruption before the first successful sync is not a
// regression worth surfacing (spec.md §4.12 special rule).
func (m *Manager) SetStateWithError(newState State, err *LastError) {
	m.mu.Lock()
	if newState == Interrupted && m.state == Initializing {
		newState = Initializing
	}
	changed := newState != m.state
	if changed {
		m.state = newState
		m.stateSince = m.now()
	}
	if err != nil {
		m.lastError = err
	}
	snapshot := m.snapshotLocked()
	var listeners []Listener
	if changed {
		listeners = make([]Listener, 0, len(m.listeners))
		for _, l := range m.listeners {
			listeners = append(listeners, l)
		}
	}
	m.mu.Unlock()

	if changed && m.logger != nil {
		m.logger.Infow("data source status changed", "state", string(newState))
	}
	for _, l := range listeners {
		l(snapshot)
	}
}
