package evaluation

import (
	"github.com/flagkit/core/internal/bucketing"
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// containsContext reports whether context belongs to the named segment,
// per spec.md §4.4: explicit includes win outright, explicit excludes
// suppress rule evaluation, and otherwise the segment's rules (each an
// ANDed clause set with an optional rollout weight) decide. visited guards
// against segmentMatch clauses that form a cycle between segments, mirroring
// the flag prerequisite cycle guard.
func (e *Evaluator) containsContext(segmentKey string, context fctx.Context, visited map[string]bool) bool {
	if visited[segmentKey] {
		return false
	}
	visited[segmentKey] = true
	defer delete(visited, segmentKey)

	desc, ok := e.segments.GetSegment(segmentKey)
	if !ok || !desc.IsPresent() {
		return false
	}
	segment := desc.Segment
	if segment.Unbounded {
		return false
	}

	included, excluded := false, false
	for _, kind := range context.Kinds() {
		individual := context.IndividualContextByKind(kind)
		if !individual.IsDefined() {
			continue
		}
		key := individual.Key()
		if segment.MatchesIncluded(kind, key) {
			included = true
		}
		if segment.MatchesExcluded(kind, key) {
			excluded = true
		}
	}
	if included {
		return true
	}
	if excluded {
		return false
	}

	for _, rule := range segment.Rules {
		if e.segmentRuleMatches(rule, context, segment, visited) {
			return true
		}
	}
	return false
}

func (e *Evaluator) segmentRuleMatches(rule fmodel.SegmentRule, context fctx.Context, segment *fmodel.Segment, visited map[string]bool) bool {
	for i := range rule.Clauses {
		clause := &rule.Clauses[i]
		if clause.Op != fmodel.OpSegmentMatch {
			if !e.clauseMatches(clause, context) {
				return false
			}
			continue
		}
		// Nested segment references share visited, so a segment cycle ends here.
		match := false
		for _, v := range clause.Values {
			match = match || (v.Type() == fval.StringType && e.containsContext(v.StringValue(), context, visited))
		}
		if match == clause.Negate {
			return false
		}
	}
	if !rule.HasWeight {
		return true
	}

	contextKind := rule.RolloutContextKind
	if contextKind == "" {
		contextKind = fctx.DefaultKind
	}
	bucketBy := rule.BucketBy
	if bucketBy.Depth() == 0 {
		bucketBy = fctx.NewLiteralAttrRef("key")
	}

	bucket, presence := bucketing.Bucket(context, bucketBy, bucketing.KeySalt(segment.Key, segment.Salt), false, contextKind)
	if presence == bucketing.Absent {
		return false
	}
	return bucket < float64(rule.Weight)/100000.0
}
