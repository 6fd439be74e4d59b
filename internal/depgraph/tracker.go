// Package depgraph implements the dependency tracker and change notifier
// (spec.md §4.6): a bidirectional graph of flag/segment dependencies used to
// compute the precise set of flags whose evaluation could change in
// response to a ruleset upsert. Grounded on
// original_source/.../data_components/dependency_tracker/dependency_tracker.cpp.
package depgraph

import (
	"sync"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// Set is an unordered collection of (kind,key) references.
type Set map[fmodel.Key]struct{}

func NewSet() Set { return make(Set) }

func (s Set) Add(k fmodel.Key) { s[k] = struct{}{} }

func (s Set) Contains(k fmodel.Key) bool {
	_, ok := s[k]
	return ok
}

// Tracker maintains forward and reverse dependency maps keyed by
// (DataKind,key).
type Tracker struct {
	mu              sync.Mutex
	dependenciesFrom map[fmodel.Key]Set
	dependenciesTo   map[fmodel.Key]Set
}

func NewTracker() *Tracker {
	return &Tracker{
		dependenciesFrom: make(map[fmodel.Key]Set),
		dependenciesTo:   make(map[fmodel.Key]Set),
	}
}

// FlagDirectDependencies computes the direct dependency set of a flag: its
// prerequisite flags and any segments referenced by segmentMatch clauses in
// its rules.
func FlagDirectDependencies(flag *fmodel.Flag) Set {
	deps := NewSet()
	if flag == nil {
		return deps
	}
	for _, p := range flag.Prerequisites {
		deps.Add(fmodel.Key{Kind: fmodel.Flags, Key: p.Key})
	}
	for _, rule := range flag.Rules {
		addSegmentMatchDeps(deps, rule.Clauses)
	}
	return deps
}

// SegmentDirectDependencies computes the direct dependency set of a segment:
// any segments referenced by segmentMatch clauses in its rules.
func SegmentDirectDependencies(segment *fmodel.Segment) Set {
	deps := NewSet()
	if segment == nil {
		return deps
	}
	for _, rule := range segment.Rules {
		addSegmentMatchDeps(deps, rule.Clauses)
	}
	return deps
}

func addSegmentMatchDeps(deps Set, clauses []fmodel.Clause) {
	for _, c := range clauses {
		if c.Op != fmodel.OpSegmentMatch {
			continue
		}
		for _, v := range c.Values {
			if v.Type() == fval.StringType {
				deps.Add(fmodel.Key{Kind: fmodel.Segments, Key: v.StringValue()})
			}
		}
	}
}

// UpdateDependencies replaces the direct dependency set for (kind,key) and
// incrementally reindexes the reverse map.
func (t *Tracker) UpdateDependencies(key fmodel.Key, deps Set) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.dependenciesFrom[key]; ok {
		for dep := range prev {
			if rev, ok := t.dependenciesTo[dep]; ok {
				delete(rev, key)
			}
		}
	}

	t.dependenciesFrom[key] = deps
	for dep := range deps {
		rev, ok := t.dependenciesTo[dep]
		if !ok {
			rev = NewSet()
			t.dependenciesTo[dep] = rev
		}
		rev.Add(key)
	}
}

// CalculateChanges computes the transitive closure of everything that
// depends on (kind,key), including (kind,key) itself, merging into outSet.
func (t *Tracker) CalculateChanges(key fmodel.Key, outSet Set) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calculateChangesLocked(key, outSet)
}

func (t *Tracker) calculateChangesLocked(key fmodel.Key, outSet Set) {
	if outSet.Contains(key) {
		return
	}
	outSet.Add(key)
	for dep := range t.dependenciesTo[key] {
		t.calculateChangesLocked(dep, outSet)
	}
}

// Reset clears all tracked dependencies (called when the store is
// reinitialized with a fresh data set).
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dependenciesFrom = make(map[fmodel.Key]Set)
	t.dependenciesTo = make(map[fmodel.Key]Set)
}
