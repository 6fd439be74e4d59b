package fmodel

import "github.com/flagkit/core/internal/fval"

// FlagMetadata is the per-flag bookkeeping carried alongside a flag's value
// in a FeatureFlagsState snapshot (spec.md §3, supplemented from
// all_flags_state_builder.cpp per SPEC_FULL.md §4).
type FlagMetadata struct {
	Version              int
	VariationIndex       int
	HasVariation         bool
	Reason               string // rendered reason kind, omitted unless requested
	HasReason            bool
	TrackEvents          bool
	TrackReason          bool
	DebugEventsUntilDate int64
	Prerequisites        []string
}

// FlagsState is a point-in-time snapshot of every known flag's evaluation
// result for one context, used by hosts that front-load all flags into a
// client-side bundle.
type FlagsState struct {
	Valid       bool
	evaluations map[string]fval.Value
	metadata    map[string]FlagMetadata
	order       []string
}

func NewFlagsState(valid bool) *FlagsState {
	return &FlagsState{
		Valid:       valid,
		evaluations: make(map[string]fval.Value),
		metadata:    make(map[string]FlagMetadata),
	}
}

func (s *FlagsState) AddFlag(key string, value fval.Value, meta FlagMetadata) {
	if _, exists := s.evaluations[key]; !exists {
		s.order = append(s.order, key)
	}
	s.evaluations[key] = value
	s.metadata[key] = meta
}

func (s *FlagsState) GetFlagValue(key string) (fval.Value, bool) {
	v, ok := s.evaluations[key]
	return v, ok
}

func (s *FlagsState) GetFlagMetadata(key string) (FlagMetadata, bool) {
	m, ok := s.metadata[key]
	return m, ok
}

// ToValuesMap returns a flat key->value map; Keys gives the order in which
// flags were added.
func (s *FlagsState) ToValuesMap() map[string]fval.Value {
	out := make(map[string]fval.Value, len(s.evaluations))
	for k, v := range s.evaluations {
		out[k] = v
	}
	return out
}

func (s *FlagsState) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
