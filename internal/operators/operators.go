// Package operators implements the clause operator library (spec.md §4.2):
// fourteen operators over string/numeric/date/regex/semver/array operands
// (segmentMatch, the fifteenth, is evaluated by the evaluation package).
// Grounded on original_source/libs/server-sdk/src/evaluation/operators.cpp
// for exact semantics.
package operators

import (
	"regexp"
	"strings"
	"time"

	"github.com/launchdarkly/go-semver"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// Evaluate applies the named operator to (contextValue, clauseValue). The
// caller is responsible for array distribution (evaluating once per array
// element) and for clause-level negation.
//
// compiledRegex lets callers pass the precompiled regex for OpMatches from
// Clause.CompiledRegex; pass nil when no precompiled pattern is available and
// the clause value is compiled on the spot.
func Evaluate(op fmodel.Operator, contextValue, clauseValue fval.Value, compiledRegex *regexp.Regexp) bool {
	switch op {
	case fmodel.OpIn:
		return contextValue.Equal(clauseValue)
	case fmodel.OpStartsWith:
		return stringOp(contextValue, clauseValue, strings.HasPrefix)
	case fmodel.OpEndsWith:
		return stringOp(contextValue, clauseValue, strings.HasSuffix)
	case fmodel.OpContains:
		return stringOp(contextValue, clauseValue, strings.Contains)
	case fmodel.OpMatches:
		return matchesOp(contextValue, clauseValue, compiledRegex)
	case fmodel.OpLessThan:
		return numericOp(contextValue, clauseValue, func(a, b float64) bool { return a < b })
	case fmodel.OpLessThanOrEqual:
		return numericOp(contextValue, clauseValue, func(a, b float64) bool { return a <= b })
	case fmodel.OpGreaterThan:
		return numericOp(contextValue, clauseValue, func(a, b float64) bool { return a > b })
	case fmodel.OpGreaterThanOrEqual:
		return numericOp(contextValue, clauseValue, func(a, b float64) bool { return a >= b })
	case fmodel.OpBefore:
		return dateOp(contextValue, clauseValue, func(a, b time.Time) bool { return a.Before(b) })
	case fmodel.OpAfter:
		return dateOp(contextValue, clauseValue, func(a, b time.Time) bool { return a.After(b) })
	case fmodel.OpSemVerEqual:
		return semverOp(contextValue, clauseValue, func(cmp int) bool { return cmp == 0 })
	case fmodel.OpSemVerLessThan:
		return semverOp(contextValue, clauseValue, func(cmp int) bool { return cmp < 0 })
	case fmodel.OpSemVerGreaterThan:
		return semverOp(contextValue, clauseValue, func(cmp int) bool { return cmp > 0 })
	default:
		// OpSegmentMatch is handled by the evaluation package, which has
		// access to the segment store; any other unknown op never matches.
		return false
	}
}

func stringOp(a, b fval.Value, test func(s, substr string) bool) bool {
	if a.Type() != fval.StringType || b.Type() != fval.StringType {
		return false
	}
	return test(a.StringValue(), b.StringValue())
}

func matchesOp(a, b fval.Value, compiled *regexp.Regexp) bool {
	if a.Type() != fval.StringType || b.Type() != fval.StringType {
		return false
	}
	re := compiled
	if re == nil {
		var err error
		re, err = regexp.Compile(b.StringValue())
		if err != nil {
			return false
		}
	}
	return re.MatchString(a.StringValue())
}

func numericOp(a, b fval.Value, cmp func(a, b float64) bool) bool {
	if a.Type() != fval.NumberType || b.Type() != fval.NumberType {
		return false
	}
	return cmp(a.Float64Value(), b.Float64Value())
}

// parseTimestamp accepts either an RFC3339 string or a number of
// milliseconds since the epoch.
func parseTimestamp(v fval.Value) (time.Time, bool) {
	switch v.Type() {
	case fval.StringType:
		t, err := time.Parse(time.RFC3339Nano, v.StringValue())
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case fval.NumberType:
		ms := v.Float64Value()
		sec := int64(ms) / 1000
		nsec := (int64(ms) % 1000) * int64(time.Millisecond)
		return time.Unix(sec, nsec).UTC(), true
	default:
		return time.Time{}, false
	}
}

func dateOp(a, b fval.Value, cmp func(a, b time.Time) bool) bool {
	ta, ok := parseTimestamp(a)
	if !ok {
		return false
	}
	tb, ok := parseTimestamp(b)
	if !ok {
		return false
	}
	// Compare at microsecond precision: truncate away any nanosecond-level
	// difference before comparing (spec.md §8 boundary behaviour).
	ta = ta.Truncate(time.Microsecond)
	tb = tb.Truncate(time.Microsecond)
	return cmp(ta, tb)
}

func parseSemVer(v fval.Value) (semver.Version, bool) {
	if v.Type() != fval.StringType {
		return semver.Version{}, false
	}
	parsed, err := semver.ParseAs(v.StringValue(), semver.ParseModeAllowMissingMinorAndPatch)
	if err != nil {
		return semver.Version{}, false
	}
	return parsed, true
}

func semverOp(a, b fval.Value, test func(cmp int) bool) bool {
	va, ok := parseSemVer(a)
	if !ok {
		return false
	}
	vb, ok := parseSemVer(b)
	if !ok {
		return false
	}
	return test(va.ComparePrecedence(vb))
}
