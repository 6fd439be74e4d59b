// Package wire implements JSON (de)serialization of the flag/segment wire
// shapes (spec.md §6): the streaming/polling snapshot body, and the
// SerializedItemDescriptor shape used by the lazy-load plugin contract.
// Grounded on original_source/.../serialization_adapters/json_deserializer.cpp
// (SPEC_FULL.md §4).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// FlagJSON mirrors the wire shape of a single flag object.
type FlagJSON struct {
	Key                    string               `json:"key"`
	Version                int                  `json:"version"`
	On                     bool                 `json:"on"`
	Salt                   string               `json:"salt"`
	Variations             []json.RawMessage    `json:"variations"`
	OffVariation           *int                 `json:"offVariation"`
	Fallthrough            variationOrRolloutJS `json:"fallthrough"`
	Targets                []targetJS           `json:"targets"`
	ContextTargets         []targetJS           `json:"contextTargets"`
	Rules                  []ruleJS             `json:"rules"`
	Prerequisites          []prerequisiteJS     `json:"prerequisites"`
	TrackEvents            bool                 `json:"trackEvents"`
	TrackEventsFallthrough bool                 `json:"trackEventsFallthrough"`
	DebugEventsUntilDate   int64                `json:"debugEventsUntilDate"`
	ClientSideAvailability *clientSideJS        `json:"clientSideAvailability"`
	Deleted                bool                 `json:"deleted"`
}

type clientSideJS struct {
	UsingMobileKey     bool `json:"usingMobileKey"`
	UsingEnvironmentID bool `json:"usingEnvironmentId"`
}

type targetJS struct {
	ContextKind string   `json:"contextKind"`
	Values      []string `json:"values"`
	Variation   int      `json:"variation"`
}

type prerequisiteJS struct {
	Key       string `json:"key"`
	Variation int    `json:"variation"`
}

type ruleJS struct {
	variationOrRolloutJS
	ID          string    `json:"id"`
	Clauses     []clauseJS `json:"clauses"`
	TrackEvents bool      `json:"trackEvents"`
}

type variationOrRolloutJS struct {
	Variation *int      `json:"variation"`
	Rollout   *rolloutJS `json:"rollout"`
}

type rolloutJS struct {
	Kind        string              `json:"kind"`
	ContextKind string              `json:"contextKind"`
	Variations  []weightedVariationJS `json:"variations"`
	BucketBy    string              `json:"bucketBy"`
	Seed        *int64              `json:"seed"`
}

type weightedVariationJS struct {
	Variation int  `json:"variation"`
	Weight    int  `json:"weight"`
	Untracked bool `json:"untracked"`
}

type clauseJS struct {
	ContextKind string            `json:"contextKind"`
	Attribute   string            `json:"attribute"`
	Op          string            `json:"op"`
	Values      []json.RawMessage `json:"values"`
	Negate      bool              `json:"negate"`
}

// SegmentJSON mirrors the wire shape of a single segment object.
type SegmentJSON struct {
	Key              string            `json:"key"`
	Version          int               `json:"version"`
	Salt             string            `json:"salt"`
	Included         []string          `json:"included"`
	Excluded         []string          `json:"excluded"`
	IncludedContexts []targetJS        `json:"includedContexts"`
	ExcludedContexts []targetJS        `json:"excludedContexts"`
	Rules            []segmentRuleJS   `json:"rules"`
	Unbounded        bool              `json:"unbounded"`
	Deleted          bool              `json:"deleted"`
}

type segmentRuleJS struct {
	ID                 string     `json:"id"`
	Clauses            []clauseJS `json:"clauses"`
	Weight             *int       `json:"weight"`
	BucketBy           string     `json:"bucketBy"`
	RolloutContextKind string     `json:"rolloutContextKind"`
}

// Snapshot is the full-ruleset shape used by streaming `put` and polling
// responses: {"flags": {...}, "segments": {...}}.
type Snapshot struct {
	Flags    map[string]FlagJSON    `json:"flags"`
	Segments map[string]SegmentJSON `json:"segments"`
}

func decodeValues(raws []json.RawMessage) ([]fval.Value, error) {
	out := make([]fval.Value, len(raws))
	for i, raw := range raws {
		var v fval.Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeVariationOrRollout(js variationOrRolloutJS) (fmodel.VariationOrRollout, error) {
	if js.Variation != nil {
		return fmodel.VariationOrRollout{Variation: *js.Variation, HasVariation: true}, nil
	}
	if js.Rollout == nil {
		return fmodel.VariationOrRollout{}, fmt.Errorf("wire: variationOrRollout has neither variation nor rollout")
	}
	r := js.Rollout
	kind := fmodel.RolloutKindRollout
	if r.Kind == string(fmodel.RolloutKindExperiment) {
		kind = fmodel.RolloutKindExperiment
	}
	variations := make([]fmodel.WeightedVariation, len(r.Variations))
	for i, wv := range r.Variations {
		variations[i] = fmodel.WeightedVariation{Variation: wv.Variation, Weight: wv.Weight, Untracked: wv.Untracked}
	}
	bucketBy := fctx.NewLiteralAttrRef("key")
	if r.BucketBy != "" {
		bucketBy = fctx.NewAttrRef(r.BucketBy)
	}
	return fmodel.VariationOrRollout{
		Rollout: fmodel.Rollout{
			Kind:        kind,
			ContextKind: r.ContextKind,
			Variations:  variations,
			BucketBy:    bucketBy,
			Seed:        r.Seed,
		},
	}, nil
}

func decodeClause(js clauseJS) (fmodel.Clause, error) {
	values, err := decodeValues(js.Values)
	if err != nil {
		return fmodel.Clause{}, err
	}
	return fmodel.Clause{
		ContextKind: js.ContextKind,
		Attribute:   fctx.NewAttrRef(js.Attribute),
		Op:          fmodel.Operator(js.Op),
		Values:      values,
		Negate:      js.Negate,
	}, nil
}

func decodeTarget(js targetJS) fmodel.Target {
	return fmodel.Target{ContextKind: js.ContextKind, Values: js.Values, Variation: js.Variation}
}

// DecodeFlag converts a wire FlagJSON into the internal Flag model, running
// Preprocess before returning.
func DecodeFlag(js FlagJSON) (*fmodel.Flag, error) {
	variations, err := decodeValues(js.Variations)
	if err != nil {
		return nil, err
	}
	fallthroughVOR, err := decodeVariationOrRollout(js.Fallthrough)
	if err != nil {
		return nil, err
	}

	targets := make([]fmodel.Target, len(js.Targets))
	for i, t := range js.Targets {
		targets[i] = decodeTarget(t)
	}
	contextTargets := make([]fmodel.Target, len(js.ContextTargets))
	for i, t := range js.ContextTargets {
		contextTargets[i] = decodeTarget(t)
	}

	rules := make([]fmodel.FlagRule, len(js.Rules))
	for i, r := range js.Rules {
		vor, err := decodeVariationOrRollout(r.variationOrRolloutJS)
		if err != nil {
			return nil, fmt.Errorf("wire: rule %d: %w", i, err)
		}
		clauses := make([]fmodel.Clause, len(r.Clauses))
		for j, c := range r.Clauses {
			clause, err := decodeClause(c)
			if err != nil {
				return nil, fmt.Errorf("wire: rule %d clause %d: %w", i, j, err)
			}
			clauses[j] = clause
		}
		rules[i] = fmodel.FlagRule{VariationOrRollout: vor, ID: r.ID, Clauses: clauses, TrackEvents: r.TrackEvents}
	}

	prereqs := make([]fmodel.Prerequisite, len(js.Prerequisites))
	for i, p := range js.Prerequisites {
		prereqs[i] = fmodel.Prerequisite{Key: p.Key, Variation: p.Variation}
	}

	flag := &fmodel.Flag{
		Key:                    js.Key,
		Version:                js.Version,
		On:                     js.On,
		Salt:                   js.Salt,
		Variations:             variations,
		Fallthrough:            fallthroughVOR,
		Targets:                targets,
		ContextTargets:         contextTargets,
		Rules:                  rules,
		Prerequisites:          prereqs,
		TrackEvents:            js.TrackEvents,
		TrackEventsFallthrough: js.TrackEventsFallthrough,
		DebugEventsUntilDate:   js.DebugEventsUntilDate,
		Deleted:                js.Deleted,
	}
	if js.OffVariation != nil {
		flag.OffVariation = *js.OffVariation
		flag.HasOffVariation = true
	}
	if js.ClientSideAvailability != nil {
		flag.ClientSideAvailability = fmodel.ClientSideAvailability{
			UsingMobileKey:     js.ClientSideAvailability.UsingMobileKey,
			UsingEnvironmentID: js.ClientSideAvailability.UsingEnvironmentID,
		}
	}
	flag.Preprocess()
	return flag, nil
}

// DecodeSegment converts a wire SegmentJSON into the internal Segment model.
func DecodeSegment(js SegmentJSON) (*fmodel.Segment, error) {
	includedContexts := make([]fmodel.SegmentTarget, len(js.IncludedContexts))
	for i, t := range js.IncludedContexts {
		includedContexts[i] = fmodel.SegmentTarget{ContextKind: t.ContextKind, Values: t.Values}
	}
	excludedContexts := make([]fmodel.SegmentTarget, len(js.ExcludedContexts))
	for i, t := range js.ExcludedContexts {
		excludedContexts[i] = fmodel.SegmentTarget{ContextKind: t.ContextKind, Values: t.Values}
	}
	rules := make([]fmodel.SegmentRule, len(js.Rules))
	for i, r := range js.Rules {
		clauses := make([]fmodel.Clause, len(r.Clauses))
		for j, c := range r.Clauses {
			clause, err := decodeClause(c)
			if err != nil {
				return nil, fmt.Errorf("wire: segment rule %d clause %d: %w", i, j, err)
			}
			clauses[j] = clause
		}
		bucketBy := fctx.NewLiteralAttrRef("key")
		if r.BucketBy != "" {
			bucketBy = fctx.NewAttrRef(r.BucketBy)
		}
		sr := fmodel.SegmentRule{
			ID:                 r.ID,
			Clauses:            clauses,
			BucketBy:           bucketBy,
			RolloutContextKind: r.RolloutContextKind,
		}
		if r.Weight != nil {
			sr.Weight = *r.Weight
			sr.HasWeight = true
		}
		rules[i] = sr
	}

	segment := &fmodel.Segment{
		Key:              js.Key,
		Version:          js.Version,
		Salt:             js.Salt,
		Included:         js.Included,
		Excluded:         js.Excluded,
		IncludedContexts: includedContexts,
		ExcludedContexts: excludedContexts,
		Rules:            rules,
		Unbounded:        js.Unbounded,
	}
	segment.Preprocess()
	return segment, nil
}

// SerializedItemDescriptor is the lazy-load plugin contract's wire shape
// (spec.md §6): a version, a deleted flag, and the raw serialized item
// (absent for tombstones).
type SerializedItemDescriptor struct {
	Version        int
	Deleted        bool
	SerializedItem string
	HasItem        bool
}

// DecodePutData parses a put-shaped JSON document (used by both the
// streaming `put` event and polling responses).
func DecodePutData(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
