package events

import (
	"time"

	"github.com/flagkit/core/internal/fval"
)

// variationKey identifies one counter bucket within a flag's summary:
// (flagKey, variationIndex?, version?) per spec.md §4.13.
type variationKey struct {
	hasVariation bool
	variation    int
	hasVersion   bool
	version      int
}

type counter struct {
	key     variationKey
	value   fval.Value
	count   int
	unknown bool
}

type flagSummary struct {
	defaultValue fval.Value
	contextKinds map[string]struct{}
	counters     map[variationKey]*counter
}

// summariser accumulates per-flag evaluation counters between flushes.
// Grounded on summary_state.hpp's counters_/default_/context_kinds_ layout;
// summary_state.cpp itself is an empty stub, so the counting behavior below
// follows spec.md §4.13 directly.
type summariser struct {
	startTime time.Time
	byFlag    map[string]*flagSummary
}

func newSummariser(now time.Time) *summariser {
	return &summariser{startTime: now, byFlag: make(map[string]*flagSummary)}
}

func (s *summariser) record(e EvaluationEvent) {
	fs, ok := s.byFlag[e.FlagKey]
	if !ok {
		fs = &flagSummary{
			defaultValue: e.Default,
			contextKinds: make(map[string]struct{}),
			counters:     make(map[variationKey]*counter),
		}
		s.byFlag[e.FlagKey] = fs
	}
	for _, kind := range e.ContextKinds {
		fs.contextKinds[kind] = struct{}{}
	}

	vk := variationKey{hasVariation: e.HasVariation, variation: e.Variation, hasVersion: e.Version != 0, version: e.Version}
	c, ok := fs.counters[vk]
	if !ok {
		c = &counter{key: vk, value: e.Value, unknown: !e.HasVariation}
		fs.counters[vk] = c
	}
	c.count++
}

// isEmpty reports whether any evaluation has been recorded since the last
// reset.
func (s *summariser) isEmpty() bool {
	return len(s.byFlag) == 0
}

// finalize produces the wire "summary" event covering [startTime, now] and
// resets the accumulator for the next window.
func (s *summariser) finalize(now time.Time) summaryEventJSON {
	out := summaryEventJSON{
		Kind:      "summary",
		StartDate: s.startTime.UnixMilli(),
		EndDate:   now.UnixMilli(),
		Features:  make(map[string]summaryFeatureJSON, len(s.byFlag)),
	}
	for key, fs := range s.byFlag {
		kinds := make([]string, 0, len(fs.contextKinds))
		for k := range fs.contextKinds {
			kinds = append(kinds, k)
		}
		counters := make([]summaryCounterJSON, 0, len(fs.counters))
		for _, c := range fs.counters {
			cj := summaryCounterJSON{Value: c.value, Count: c.count}
			if c.key.hasVariation {
				v := c.key.variation
				cj.Variation = &v
			}
			if c.key.hasVersion {
				v := c.key.version
				cj.Version = &v
			}
			if c.unknown {
				cj.Unknown = true
			}
			counters = append(counters, cj)
		}
		out.Features[key] = summaryFeatureJSON{
			Default:      fs.defaultValue,
			ContextKinds: kinds,
			Counters:     counters,
		}
	}

	s.startTime = now
	s.byFlag = make(map[string]*flagSummary)
	return out
}

type summaryEventJSON struct {
	Kind      string                        `json:"kind"`
	StartDate int64                         `json:"startDate"`
	EndDate   int64                         `json:"endDate"`
	Features  map[string]summaryFeatureJSON `json:"features"`
}

type summaryFeatureJSON struct {
	Default      fval.Value           `json:"default"`
	ContextKinds []string             `json:"contextKinds"`
	Counters     []summaryCounterJSON `json:"counters"`
}

type summaryCounterJSON struct {
	Variation *int       `json:"variation,omitempty"`
	Version   *int       `json:"version,omitempty"`
	Value     fval.Value `json:"value"`
	Count     int        `json:"count"`
	Unknown   bool       `json:"unknown,omitempty"`
}
