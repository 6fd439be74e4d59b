// Package store implements the in-memory flag/segment ruleset cache (spec.md
// §4.5): Init/Upsert with monotonicity, and consistent-snapshot reads.
// Grounded on original_source/.../data_store/memory and the upsert-vs-
// existing-version comparison idiom in dorkly/reconcile.go.
package store

import (
	"sync"

	"github.com/flagkit/core/internal/fmodel"
)

// MemoryStore is a thread-safe map of flag/segment descriptors by key.
type MemoryStore struct {
	mu          sync.RWMutex
	flags       map[string]fmodel.FlagDescriptor
	segments    map[string]fmodel.SegmentDescriptor
	initialized bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:    make(map[string]fmodel.FlagDescriptor),
		segments: make(map[string]fmodel.SegmentDescriptor),
	}
}

// Init atomically replaces both maps.
func (s *MemoryStore) Init(flags map[string]fmodel.FlagDescriptor, segments map[string]fmodel.SegmentDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = copyFlagMap(flags)
	s.segments = copySegmentMap(segments)
	s.initialized = true
}

func copyFlagMap(m map[string]fmodel.FlagDescriptor) map[string]fmodel.FlagDescriptor {
	out := make(map[string]fmodel.FlagDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySegmentMap(m map[string]fmodel.SegmentDescriptor) map[string]fmodel.SegmentDescriptor {
	out := make(map[string]fmodel.SegmentDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UpsertFlag applies an upsert, discarding it silently if its version is not
// strictly greater than the existing descriptor's version (spec.md §4.5
// upsert monotonicity). Returns whether the upsert was applied.
func (s *MemoryStore) UpsertFlag(key string, desc fmodel.FlagDescriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.flags[key]; ok && desc.Version <= existing.Version {
		return false
	}
	s.flags[key] = desc
	return true
}

// UpsertSegment is the segment equivalent of UpsertFlag.
func (s *MemoryStore) UpsertSegment(key string, desc fmodel.SegmentDescriptor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.segments[key]; ok && desc.Version <= existing.Version {
		return false
	}
	s.segments[key] = desc
	return true
}

func (s *MemoryStore) GetFlag(key string) (fmodel.FlagDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.flags[key]
	return d, ok
}

func (s *MemoryStore) GetSegment(key string) (fmodel.SegmentDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.segments[key]
	return d, ok
}

// AllFlags returns a consistent snapshot copy of every present (non-
// tombstone) flag.
func (s *MemoryStore) AllFlags() map[string]*fmodel.Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*fmodel.Flag, len(s.flags))
	for k, d := range s.flags {
		if d.IsPresent() {
			out[k] = d.Flag
		}
	}
	return out
}

// AllSegments returns a consistent snapshot copy of every present segment.
func (s *MemoryStore) AllSegments() map[string]*fmodel.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*fmodel.Segment, len(s.segments))
	for k, d := range s.segments {
		if d.IsPresent() {
			out[k] = d.Segment
		}
	}
	return out
}

// Initialized reports whether Init has been called at least once.
func (s *MemoryStore) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}
