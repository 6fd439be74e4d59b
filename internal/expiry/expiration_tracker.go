// Package expiry implements the per-key TTL tracker used by the lazy-load
// cache (spec.md §4.7). Grounded on
// original_source/.../data_store/persistent/expiration_tracker.cpp, which is
// itself a thin stub in the original source — spec.md is the sole authority
// for the State/Add contract.
package expiry

import (
	"sync"
	"time"

	"github.com/flagkit/core/internal/fmodel"
)

// State is the freshness of a tracked key at the moment it's queried.
type State int

const (
	Fresh State = iota
	Stale
	NotTracked
)

// wellKnownKey namespaces the tracker's "unscoped" entries, distinct from
// any per-kind key (spec.md §4.7).
type wellKnownKey string

const (
	AllFlags    wellKnownKey = "allFlags"
	AllSegments wellKnownKey = "allSegments"
	Initialized wellKnownKey = "initialized"
)

// Tracker maps keys to monotonic-clock deadlines, with separate namespaces
// for flags, segments, and unscoped well-known keys. Every method takes the
// tracker's own mutex, so it is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	scoped   map[fmodel.Key]time.Time
	unscoped map[wellKnownKey]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		scoped:   make(map[fmodel.Key]time.Time),
		unscoped: make(map[wellKnownKey]time.Time),
	}
}

// Add records that the given key is fresh until the given deadline.
func (t *Tracker) Add(key fmodel.Key, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scoped[key] = deadline
}

// AddUnscoped records a deadline for one of the well-known unscoped keys.
func (t *Tracker) AddUnscoped(key wellKnownKey, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unscoped[key] = deadline
}

// State reports the freshness of a scoped key at the given time.
func (t *Tracker) State(key fmodel.Key, now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.scoped[key]
	if !ok {
		return NotTracked
	}
	if deadline.After(now) {
		return Fresh
	}
	return Stale
}

// StateUnscoped reports the freshness of a well-known unscoped key.
func (t *Tracker) StateUnscoped(key wellKnownKey, now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.unscoped[key]
	if !ok {
		return NotTracked
	}
	if deadline.After(now) {
		return Fresh
	}
	return Stale
}

// Remove drops a scoped key's tracked deadline, so the next query reports
// NotTracked.
func (t *Tracker) Remove(key fmodel.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.scoped, key)
}
