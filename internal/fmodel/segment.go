package fmodel

import "github.com/flagkit/core/internal/fctx"

// SegmentTarget is a per-kind included/excluded context key list within a
// segment.
type SegmentTarget struct {
	ContextKind string
	Values      []string

	keySet map[string]struct{}
}

func (t *SegmentTarget) Preprocess() {
	t.keySet = make(map[string]struct{}, len(t.Values))
	for _, v := range t.Values {
		t.keySet[v] = struct{}{}
	}
}

func (t *SegmentTarget) Contains(key string) bool {
	if t.keySet != nil {
		_, ok := t.keySet[key]
		return ok
	}
	for _, v := range t.Values {
		if v == key {
			return true
		}
	}
	return false
}

// SegmentRule is a single ordered rule within a segment, optionally gated by
// a percentage weight.
type SegmentRule struct {
	ID                 string
	Clauses            []Clause
	Weight             int
	HasWeight          bool
	BucketBy           fctx.AttrRef
	RolloutContextKind string
}

// Segment is the full descriptor for one context segment (spec.md §3).
type Segment struct {
	Key              string
	Version          int
	Salt             string
	Included         []string
	Excluded         []string
	IncludedContexts []SegmentTarget
	ExcludedContexts []SegmentTarget
	Rules            []SegmentRule
	Unbounded        bool

	includedSet map[string]struct{}
	excludedSet map[string]struct{}
}

// Preprocess indexes legacy included/excluded key lists and per-kind target
// lists, and compiles rule clause regexes.
func (s *Segment) Preprocess() {
	s.includedSet = make(map[string]struct{}, len(s.Included))
	for _, k := range s.Included {
		s.includedSet[k] = struct{}{}
	}
	s.excludedSet = make(map[string]struct{}, len(s.Excluded))
	for _, k := range s.Excluded {
		s.excludedSet[k] = struct{}{}
	}
	for i := range s.IncludedContexts {
		s.IncludedContexts[i].Preprocess()
	}
	for i := range s.ExcludedContexts {
		s.ExcludedContexts[i].Preprocess()
	}
	for i := range s.Rules {
		for j := range s.Rules[i].Clauses {
			s.Rules[i].Clauses[j].Preprocess()
		}
	}
}

func (s *Segment) includesLegacyKey(key string) bool {
	if s.includedSet != nil {
		_, ok := s.includedSet[key]
		return ok
	}
	for _, k := range s.Included {
		if k == key {
			return true
		}
	}
	return false
}

func (s *Segment) excludesLegacyKey(key string) bool {
	if s.excludedSet != nil {
		_, ok := s.excludedSet[key]
		return ok
	}
	for _, k := range s.Excluded {
		if k == key {
			return true
		}
	}
	return false
}

// MatchesIncluded reports whether the given kind/key is present in the
// legacy Included list (for "user" kind) or IncludedContexts (otherwise).
func (s *Segment) MatchesIncluded(kind, key string) bool {
	if kind == "" || kind == fctx.DefaultKind {
		if s.includesLegacyKey(key) {
			return true
		}
	}
	for i := range s.IncludedContexts {
		t := &s.IncludedContexts[i]
		ctxKind := t.ContextKind
		if ctxKind == "" {
			ctxKind = fctx.DefaultKind
		}
		if ctxKind == kind && t.Contains(key) {
			return true
		}
	}
	return false
}

// MatchesExcluded reports whether the given kind/key is present in the
// legacy Excluded list (for "user" kind) or ExcludedContexts (otherwise).
func (s *Segment) MatchesExcluded(kind, key string) bool {
	if kind == "" || kind == fctx.DefaultKind {
		if s.excludesLegacyKey(key) {
			return true
		}
	}
	for i := range s.ExcludedContexts {
		t := &s.ExcludedContexts[i]
		ctxKind := t.ContextKind
		if ctxKind == "" {
			ctxKind = fctx.DefaultKind
		}
		if ctxKind == kind && t.Contains(key) {
			return true
		}
	}
	return false
}

// SegmentDescriptor is a versioned slot in the memory store: either a live
// Segment or a tombstone.
type SegmentDescriptor struct {
	Version   int
	Tombstone bool
	Segment   *Segment
}

func PresentSegment(s *Segment) SegmentDescriptor {
	return SegmentDescriptor{Version: s.Version, Segment: s}
}

func TombstoneSegment(version int) SegmentDescriptor {
	return SegmentDescriptor{Version: version, Tombstone: true}
}

func (d SegmentDescriptor) IsPresent() bool { return !d.Tombstone && d.Segment != nil }
