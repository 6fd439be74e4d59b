// Package evaluation implements the deterministic flag evaluator (spec.md
// §4.3): prerequisite DAG walking with cycle detection, target/rule
// matching, and fallthrough resolution. Grounded on
// original_source/libs/server-sdk/src/evaluation/evaluator.cpp.
package evaluation

import (
	"go.uber.org/zap"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/freason"
	"github.com/flagkit/core/internal/fval"
)

// FlagReader is the read-only flag lookup the evaluator needs from the data
// system. The memory store satisfies this directly.
type FlagReader interface {
	GetFlag(key string) (fmodel.FlagDescriptor, bool)
}

// SegmentReader is the read-only segment lookup the evaluator needs.
type SegmentReader interface {
	GetSegment(key string) (fmodel.SegmentDescriptor, bool)
}

// EventScope receives the per-evaluation analytics callbacks the evaluator
// produces. Evaluate calls RecordEvaluation once for a flag found in the
// store, plus RecordPrerequisiteEvaluation once per prerequisite visited;
// the client-not-ready, invalid-context and flag-not-found returns record
// nothing. NoopEventScope is used internally for calls like AllFlagsState
// where we don't want side effects.
type EventScope interface {
	// RecordEvaluation is called once for the top-level flag being
	// evaluated, with the final detail that will be returned to the caller.
	RecordEvaluation(flag *fmodel.Flag, context fctx.Context, detail freason.Detail[fval.Value], defaultValue fval.Value)
	// RecordPrerequisiteEvaluation is called once per prerequisite flag
	// visited, regardless of whether the prerequisite condition was met.
	RecordPrerequisiteEvaluation(prereqFlag *fmodel.Flag, context fctx.Context, detail freason.Detail[fval.Value], prereqOfKey string)
}

// NoopEventScope discards every callback; used for evaluations with no
// observable side effects (e.g. AllFlagsState, internal prerequisite
// recursion that the caller doesn't want surfaced as top-level events).
type NoopEventScope struct{}

func (NoopEventScope) RecordEvaluation(*fmodel.Flag, fctx.Context, freason.Detail[fval.Value], fval.Value) {
}
func (NoopEventScope) RecordPrerequisiteEvaluation(*fmodel.Flag, fctx.Context, freason.Detail[fval.Value], string) {
}

// Evaluator evaluates one flag for one context at a time. It is stateless
// across calls; all per-evaluation state (the cycle-detection seen-set)
// lives on the call stack (spec.md §9 "cyclic graphs via ownership").
type Evaluator struct {
	flags    FlagReader
	segments SegmentReader
	logger   *zap.SugaredLogger
}

func NewEvaluator(flags FlagReader, segments SegmentReader, logger *zap.SugaredLogger) *Evaluator {
	return &Evaluator{flags: flags, segments: segments, logger: logger}
}

// Evaluate looks up flagKey and evaluates it for context, applying the
// ClientNotReady and UserNotSpecified preconditions (spec.md §4.3).
// defaultValue is returned, wrapped in an error Detail, whenever evaluation
// cannot produce a trusted value.
func (e *Evaluator) Evaluate(flagKey string, context fctx.Context, ready bool, defaultValue fval.Value, scope EventScope) freason.Detail[fval.Value] {
	if !ready {
		detail := freason.NewDetailWithoutVariation(defaultValue, freason.NewError(freason.ErrClientNotReady))
		return detail
	}
	if !context.Valid() {
		detail := freason.NewDetailWithoutVariation(defaultValue, freason.NewError(freason.ErrUserNotSpecified))
		return detail
	}

	desc, ok := e.flags.GetFlag(flagKey)
	if !ok || !desc.IsPresent() {
		detail := freason.NewDetailWithoutVariation(defaultValue, freason.NewError(freason.ErrFlagNotFound))
		return detail
	}

	seen := make(map[string]bool)
	detail := e.evaluateInternal(desc.Flag, context, scope, seen)
	if detail.Reason.Kind() == freason.Error && !detail.HasVariation {
		detail.Value = defaultValue
	}
	scope.RecordEvaluation(desc.Flag, context, detail, defaultValue)
	return detail
}

// EvaluateFlag evaluates an already-resolved flag, for callers (such as
// AllFlagsState) that have their own flag iteration and don't want the
// ClientNotReady/FlagNotFound preconditions applied twice.
func (e *Evaluator) EvaluateFlag(flag *fmodel.Flag, context fctx.Context, scope EventScope) freason.Detail[fval.Value] {
	seen := make(map[string]bool)
	detail := e.evaluateInternal(flag, context, scope, seen)
	scope.RecordEvaluation(flag, context, detail, fval.Null())
	return detail
}

func (e *Evaluator) evaluateInternal(flag *fmodel.Flag, context fctx.Context, scope EventScope, seen map[string]bool) freason.Detail[fval.Value] {
	if seen[flag.Key] {
		if e.logger != nil {
			e.logger.Errorf("circular reference detected evaluating prerequisites of flag %q", flag.Key)
		}
		return freason.NewDetailWithoutVariation(fval.Null(), freason.NewError(freason.ErrMalformedFlag))
	}
	seen[flag.Key] = true
	defer delete(seen, flag.Key)

	if !flag.On {
		return e.offValue(flag, freason.NewOff())
	}

	if failed, errDetail := e.checkPrerequisites(flag, context, scope, seen); errDetail != nil {
		return *errDetail
	} else if failed != "" {
		return e.offValue(flag, freason.NewPrerequisiteFailed(failed))
	}

	if value, index, ok := e.matchTargets(flag, context); ok {
		return freason.NewDetail(value, index, freason.NewTargetMatch())
	}

	for i, rule := range flag.Rules {
		if e.ruleMatches(rule.Clauses, context) {
			return e.resolveVariationOrRollout(flag, rule.VariationOrRollout, context,
				func(inExperiment bool) freason.Reason { return freason.NewRuleMatch(i, rule.ID, inExperiment) })
		}
	}

	return e.resolveVariationOrRollout(flag, flag.Fallthrough, context,
		func(inExperiment bool) freason.Reason { return freason.NewFallthrough(inExperiment) })
}

// checkPrerequisites walks flag.Prerequisites in order. It returns a
// non-empty failed key if a prerequisite's condition was not met, or a
// non-nil errDetail if a nested evaluation produced an Error reason (cycle
// detection) that must propagate immediately without being downgraded to a
// PrerequisiteFailed.
func (e *Evaluator) checkPrerequisites(flag *fmodel.Flag, context fctx.Context, scope EventScope, seen map[string]bool) (string, *freason.Detail[fval.Value]) {
	for _, p := range flag.Prerequisites {
		desc, ok := e.flags.GetFlag(p.Key)
		if !ok || !desc.IsPresent() {
			return p.Key, nil
		}
		prereqFlag := desc.Flag
		prereqDetail := e.evaluateInternal(prereqFlag, context, scope, seen)
		scope.RecordPrerequisiteEvaluation(prereqFlag, context, prereqDetail, flag.Key)

		if prereqDetail.Reason.Kind() == freason.Error {
			return "", &prereqDetail
		}
		if !prereqFlag.On || !prereqDetail.HasVariation || prereqDetail.VariationIndex != p.Variation {
			return p.Key, nil
		}
	}
	return "", nil
}

func (e *Evaluator) resolveVariationOrRollout(flag *fmodel.Flag, vor fmodel.VariationOrRollout, context fctx.Context, reasonFn func(inExperiment bool) freason.Reason) freason.Detail[fval.Value] {
	index, inExperiment, err := variationFor(vor, flag, context)
	if err != nil {
		if e.logger != nil {
			e.logger.Errorf("flag %q: %v", flag.Key, err)
		}
		return freason.NewDetailWithoutVariation(fval.Null(), freason.NewError(freason.ErrMalformedFlag))
	}
	value, ok := variationValue(flag, index)
	if !ok {
		if e.logger != nil {
			e.logger.Errorf("flag %q: rule/fallthrough referenced out-of-range variation %d", flag.Key, index)
		}
		return freason.NewDetailWithoutVariation(fval.Null(), freason.NewError(freason.ErrMalformedFlag))
	}
	return freason.NewDetail(value, index, reasonFn(inExperiment))
}

func variationValue(flag *fmodel.Flag, index int) (fval.Value, bool) {
	if index < 0 || index >= len(flag.Variations) {
		return fval.Null(), false
	}
	return flag.Variations[index], true
}

// offValue resolves the flag's configured off value: the variation at
// OffVariation if present and in range, null with no variation if absent,
// or MalformedFlag if OffVariation is out of range.
func (e *Evaluator) offValue(flag *fmodel.Flag, reason freason.Reason) freason.Detail[fval.Value] {
	if !flag.HasOffVariation {
		return freason.NewDetailWithoutVariation(fval.Null(), reason)
	}
	value, ok := variationValue(flag, flag.OffVariation)
	if !ok {
		if e.logger != nil {
			e.logger.Errorf("flag %q: offVariation %d is out of range", flag.Key, flag.OffVariation)
		}
		return freason.NewDetailWithoutVariation(fval.Null(), freason.NewError(freason.ErrMalformedFlag))
	}
	return freason.NewDetail(value, flag.OffVariation, reason)
}

// matchTargets checks contextTargets (priority) then legacy targets for a
// match on the context's (kind,key).
func (e *Evaluator) matchTargets(flag *fmodel.Flag, context fctx.Context) (fval.Value, int, bool) {
	for i := range flag.ContextTargets {
		t := &flag.ContextTargets[i]
		kind := t.ContextKind
		if kind == "" {
			kind = fctx.DefaultKind
		}
		individual := context.IndividualContextByKind(kind)
		if !individual.IsDefined() {
			continue
		}
		if len(t.Values) == 0 {
			// Empty contextTargets entry delegates to the legacy targets
			// entry whose variation matches this one.
			if v, idx, ok := e.matchLegacyTarget(flag, individual.Key(), t.Variation); ok {
				return v, idx, true
			}
			continue
		}
		if t.Contains(individual.Key()) {
			value, ok := variationValue(flag, t.Variation)
			if ok {
				return value, t.Variation, true
			}
		}
	}

	if value, idx, ok := e.matchLegacyTargetsForDefaultKind(flag, context); ok {
		return value, idx, true
	}
	return fval.Null(), 0, false
}

func (e *Evaluator) matchLegacyTargetsForDefaultKind(flag *fmodel.Flag, context fctx.Context) (fval.Value, int, bool) {
	individual := context.IndividualContextByKind(fctx.DefaultKind)
	if !individual.IsDefined() {
		return fval.Null(), 0, false
	}
	for i := range flag.Targets {
		t := &flag.Targets[i]
		if t.Contains(individual.Key()) {
			value, ok := variationValue(flag, t.Variation)
			if ok {
				return value, t.Variation, true
			}
		}
	}
	return fval.Null(), 0, false
}

func (e *Evaluator) matchLegacyTarget(flag *fmodel.Flag, key string, variation int) (fval.Value, int, bool) {
	for i := range flag.Targets {
		t := &flag.Targets[i]
		if t.Variation == variation && t.Contains(key) {
			value, ok := variationValue(flag, variation)
			if ok {
				return value, variation, true
			}
		}
	}
	return fval.Null(), 0, false
}
