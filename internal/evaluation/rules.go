package evaluation

import (
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
	"github.com/flagkit/core/internal/operators"
)

// ruleMatches reports whether every clause in the set matches (clauses
// within a rule are ANDed; spec.md §4.4).
func (e *Evaluator) ruleMatches(clauses []fmodel.Clause, context fctx.Context) bool {
	for i := range clauses {
		if !e.clauseMatches(&clauses[i], context) {
			return false
		}
	}
	return true
}

func isKindAttribute(ref fctx.AttrRef) bool {
	return ref.Depth() == 1 && ref.Component(0) == fctx.KindAttr
}

// clauseMatches evaluates one clause against a context, per spec.md §4.4:
// the "kind" attribute matches against the context's kind set; a
// multi-valued context attribute matches if any element satisfies the
// operator; segmentMatch delegates to segment containment.
func (e *Evaluator) clauseMatches(clause *fmodel.Clause, context fctx.Context) bool {
	match := e.clauseMatchesUnnegated(clause, context)
	if clause.Negate {
		return !match
	}
	return match
}

func (e *Evaluator) clauseMatchesUnnegated(clause *fmodel.Clause, context fctx.Context) bool {
	if clause.Op == fmodel.OpSegmentMatch {
		return e.matchesAnySegment(clause, context)
	}

	contextKind := clause.ContextKind
	if contextKind == "" {
		contextKind = fctx.DefaultKind
	}

	if isKindAttribute(clause.Attribute) {
		for _, kind := range context.Kinds() {
			if e.matchValueAgainstClause(clause, fval.String(kind)) {
				return true
			}
		}
		return false
	}

	individual := context.IndividualContextByKind(contextKind)
	if !individual.IsDefined() {
		return false
	}

	value := context.Get(contextKind, clause.Attribute)
	if value.IsNull() {
		return false
	}
	if value.Type() == fval.ArrayType {
		matched := false
		value.ForEach(func(item fval.Value) {
			if !matched && e.matchValueAgainstClause(clause, item) {
				matched = true
			}
		})
		return matched
	}
	return e.matchValueAgainstClause(clause, value)
}

func (e *Evaluator) matchValueAgainstClause(clause *fmodel.Clause, contextValue fval.Value) bool {
	for i, clauseValue := range clause.Values {
		if operators.Evaluate(clause.Op, contextValue, clauseValue, clause.CompiledRegex(i)) {
			return true
		}
	}
	return false
}

// matchesAnySegment reports whether the context belongs to any of the
// segments named by the clause's values (an OpSegmentMatch clause treats its
// values as segment keys, OR'd together).
func (e *Evaluator) matchesAnySegment(clause *fmodel.Clause, context fctx.Context) bool {
	for _, v := range clause.Values {
		if v.Type() != fval.StringType {
			continue
		}
		if e.containsContext(v.StringValue(), context, make(map[string]bool)) {
			return true
		}
	}
	return false
}
