package evaluation

import (
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/freason"
)

// AllFlagsOptions controls which flags AllFlagsState includes and how much
// evaluation detail it attaches to each, mirroring the host client's
// all-flags API contract (SPEC_FULL.md §4 "All-flags state builder").
type AllFlagsOptions struct {
	ClientSideOnly    bool
	WithReasons       bool
	DetailsOnlyForTrackedFlags bool
}

// AllFlagsState evaluates every flag in the store for context and returns a
// snapshot suitable for bootstrapping a client-side SDK, without emitting
// any analytics events (spec.md §3 "Feature flags state").
func (e *Evaluator) AllFlagsState(context fctx.Context, flags map[string]*fmodel.Flag, opts AllFlagsOptions) *fmodel.FlagsState {
	if !context.Valid() {
		return fmodel.NewFlagsState(false)
	}

	state := fmodel.NewFlagsState(true)
	for key, flag := range flags {
		if opts.ClientSideOnly && !flag.ClientSideAvailability.UsingEnvironmentID {
			continue
		}
		detail := e.EvaluateFlag(flag, context, NoopEventScope{})

		meta := fmodel.FlagMetadata{
			Version:      flag.Version,
			TrackEvents:  flag.TrackEvents || ruleTracksEvents(flag, detail.Reason),
			Prerequisites: prerequisiteKeys(flag),
		}
		if detail.HasVariation {
			meta.VariationIndex = detail.VariationIndex
			meta.HasVariation = true
		}
		isExperimentReason := detail.Reason.InExperiment()
		if opts.WithReasons || isExperimentReason {
			meta.Reason = detail.Reason.String()
			meta.HasReason = true
		}
		if isExperimentReason {
			meta.TrackReason = true
		}
		if flag.DebugEventsUntilDate > 0 {
			meta.DebugEventsUntilDate = flag.DebugEventsUntilDate
		}
		if opts.DetailsOnlyForTrackedFlags && !meta.TrackEvents && !meta.TrackReason && meta.DebugEventsUntilDate == 0 {
			meta.HasReason = false
			meta.Reason = ""
		}

		state.AddFlag(key, detail.Value, meta)
	}
	return state
}

// ruleTracksEvents reports whether the rule that produced reason carries its
// own trackEvents flag (spec.md line 66: each rule is its own
// (id, clauses, variationOrRollout, trackEvents) tuple, independent of the
// flag-level TrackEvents field).
func ruleTracksEvents(flag *fmodel.Flag, reason freason.Reason) bool {
	if reason.Kind() != freason.RuleMatch {
		return false
	}
	index, ok := reason.RuleIndex()
	if !ok || index < 0 || index >= len(flag.Rules) {
		return false
	}
	return flag.Rules[index].TrackEvents
}

func prerequisiteKeys(flag *fmodel.Flag) []string {
	if len(flag.Prerequisites) == 0 {
		return nil
	}
	keys := make([]string, len(flag.Prerequisites))
	for i, p := range flag.Prerequisites {
		keys[i] = p.Key
	}
	return keys
}
