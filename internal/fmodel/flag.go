package fmodel

import (
	"regexp"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fval"
)

// Operator is a clause operator identifier (spec.md §4.2).
type Operator string

const (
	OpIn                Operator = "in"
	OpStartsWith        Operator = "startsWith"
	OpEndsWith          Operator = "endsWith"
	OpContains          Operator = "contains"
	OpMatches           Operator = "matches"
	OpLessThan          Operator = "lessThan"
	OpLessThanOrEqual   Operator = "lessThanOrEqual"
	OpGreaterThan       Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpBefore            Operator = "before"
	OpAfter             Operator = "after"
	OpSemVerEqual       Operator = "semVerEqual"
	OpSemVerLessThan    Operator = "semVerLessThan"
	OpSemVerGreaterThan Operator = "semVerGreaterThan"
	OpSegmentMatch      Operator = "segmentMatch"
)

// RolloutKind distinguishes plain percentage rollouts from experiments.
type RolloutKind string

const (
	RolloutKindRollout    RolloutKind = "rollout"
	RolloutKindExperiment RolloutKind = "experiment"
)

// WeightedVariation is one slice of a rollout.
type WeightedVariation struct {
	Variation int
	Weight    int
	Untracked bool
}

// Rollout describes probabilistic assignment of a context to one of several
// weighted variations (spec.md §3).
type Rollout struct {
	Kind        RolloutKind
	ContextKind string
	Variations  []WeightedVariation
	BucketBy    fctx.AttrRef
	Seed        *int64
}

func (r Rollout) IsExperiment() bool { return r.Kind == RolloutKindExperiment }

// VariationOrRollout is either a fixed variation index or a rollout; exactly
// one is meaningful, discriminated by HasVariation.
type VariationOrRollout struct {
	Variation    int
	HasVariation bool
	Rollout      Rollout
}

// Clause is a single test condition within a rule (spec.md §3).
type Clause struct {
	ContextKind string
	Attribute   fctx.AttrRef
	Op          Operator
	Values      []fval.Value
	Negate      bool

	// compiledRegex caches compiled `matches` patterns, populated by
	// Preprocess. Keyed by the index into Values since each value may be a
	// distinct pattern.
	compiledRegex []*regexp.Regexp
}

// CompiledRegex returns the precompiled pattern for Values[i], or nil if
// compilation failed or Preprocess has not run.
func (c *Clause) CompiledRegex(i int) *regexp.Regexp {
	if i < 0 || i >= len(c.compiledRegex) {
		return nil
	}
	return c.compiledRegex[i]
}

// Preprocess compiles regex patterns ahead of evaluation time, matching
// ldmodel's PreprocessFlag optimization (SPEC_FULL.md §4).
func (c *Clause) Preprocess() {
	if c.Op != OpMatches {
		return
	}
	c.compiledRegex = make([]*regexp.Regexp, len(c.Values))
	for i, v := range c.Values {
		if v.Type() != fval.StringType {
			continue
		}
		if re, err := regexp.Compile(v.StringValue()); err == nil {
			c.compiledRegex[i] = re
		}
	}
}

// FlagRule is a single ordered rule within a flag.
type FlagRule struct {
	VariationOrRollout
	ID          string
	Clauses     []Clause
	TrackEvents bool
}

// Target is a set of individually-targeted context keys mapped to a
// variation, for one context kind.
type Target struct {
	ContextKind string
	Values      []string
	Variation   int

	keySet map[string]struct{}
}

// Preprocess indexes Values into a set for O(1) membership tests.
func (t *Target) Preprocess() {
	t.keySet = make(map[string]struct{}, len(t.Values))
	for _, v := range t.Values {
		t.keySet[v] = struct{}{}
	}
}

func (t *Target) Contains(key string) bool {
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

// Prerequisite names a flag key and the variation index it must return.
type Prerequisite struct {
	Key       string
	Variation int
}

// ClientSideAvailability records whether a flag may be bootstrapped to
// client-side SDKs (carried through for data-model completeness; the
// evaluation engine itself does not consult it).
type ClientSideAvailability struct {
	UsingMobileKey     bool
	UsingEnvironmentID bool
}

// Flag is the full descriptor for one feature flag (spec.md §3).
type Flag struct {
	Key                    string
	Version                int
	On                     bool
	Salt                   string
	Variations             []fval.Value
	OffVariation           int
	HasOffVariation        bool
	Fallthrough            VariationOrRollout
	Targets                []Target
	ContextTargets         []Target
	Rules                  []FlagRule
	Prerequisites          []Prerequisite
	TrackEvents            bool
	TrackEventsFallthrough bool
	DebugEventsUntilDate   int64 // ms since epoch, 0 means unset
	ClientSideAvailability ClientSideAvailability

	// Deleted marks this as a tombstone rather than a live flag (see
	// FlagDescriptor, which carries this alongside a bare version for
	// descriptors that are pure tombstones with no prior live data).
	Deleted bool
}

// Preprocess compiles regexes on every clause and indexes every target's key
// set. wire.DecodeFlag calls this once per decoded flag so that
// per-evaluation cost stays low.
func (f *Flag) Preprocess() {
	for i := range f.Targets {
		f.Targets[i].Preprocess()
	}
	for i := range f.ContextTargets {
		f.ContextTargets[i].Preprocess()
	}
	for i := range f.Rules {
		for j := range f.Rules[i].Clauses {
			f.Rules[i].Clauses[j].Preprocess()
		}
	}
}

// FlagDescriptor is a versioned slot in the memory store: either a live Flag
// or a tombstone recording only the version at which it was deleted.
type FlagDescriptor struct {
	Version   int
	Tombstone bool
	Flag      *Flag
}

func PresentFlag(f *Flag) FlagDescriptor {
	return FlagDescriptor{Version: f.Version, Flag: f}
}

func TombstoneFlag(version int) FlagDescriptor {
	return FlagDescriptor{Version: version, Tombstone: true}
}

func (d FlagDescriptor) IsPresent() bool { return !d.Tombstone && d.Flag != nil }
