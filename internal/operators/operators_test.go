package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

func TestEvaluate_In(t *testing.T) {
	assert.True(t, Evaluate(fmodel.OpIn, fval.Int(99), fval.Float64(99.0), nil))
	assert.False(t, Evaluate(fmodel.OpIn, fval.String("99"), fval.Int(99), nil))
}

func TestEvaluate_StringOps(t *testing.T) {
	assert.True(t, Evaluate(fmodel.OpStartsWith, fval.String("hello world"), fval.String("hello"), nil))
	assert.True(t, Evaluate(fmodel.OpEndsWith, fval.String("hello world"), fval.String("world"), nil))
	assert.True(t, Evaluate(fmodel.OpContains, fval.String("hello world"), fval.String("lo wo"), nil))
	assert.False(t, Evaluate(fmodel.OpStartsWith, fval.Int(5), fval.String("5"), nil))
}

func TestEvaluate_Matches(t *testing.T) {
	assert.True(t, Evaluate(fmodel.OpMatches, fval.String("foo123"), fval.String("^foo[0-9]+$"), nil))
	assert.False(t, Evaluate(fmodel.OpMatches, fval.String("bar"), fval.String("^foo[0-9]+$"), nil))
	// Invalid pattern never matches (spec.md §8 boundary behaviour).
	assert.False(t, Evaluate(fmodel.OpMatches, fval.String("x"), fval.String("("), nil))
}

func TestEvaluate_NumericOps(t *testing.T) {
	assert.True(t, Evaluate(fmodel.OpLessThan, fval.Float64(1), fval.Float64(2), nil))
	assert.True(t, Evaluate(fmodel.OpLessThanOrEqual, fval.Float64(2), fval.Float64(2), nil))
	assert.True(t, Evaluate(fmodel.OpGreaterThan, fval.Float64(3), fval.Float64(2), nil))
	assert.True(t, Evaluate(fmodel.OpGreaterThanOrEqual, fval.Float64(2), fval.Float64(2), nil))
	assert.False(t, Evaluate(fmodel.OpLessThan, fval.String("1"), fval.Float64(2), nil))
}

func TestEvaluate_DateOps_MicrosecondPrecision(t *testing.T) {
	a := fval.String("2024-05-21T12:00:00.0000001Z")
	b := fval.String("2024-05-21T12:00:00.0000009Z")
	// Same microsecond once truncated, so neither before nor after holds.
	assert.False(t, Evaluate(fmodel.OpBefore, a, b, nil))
	assert.False(t, Evaluate(fmodel.OpAfter, a, b, nil))

	earlier := fval.String("2024-05-21T11:00:00Z")
	later := fval.String("2024-05-21T12:00:00Z")
	assert.True(t, Evaluate(fmodel.OpBefore, earlier, later, nil))
	assert.True(t, Evaluate(fmodel.OpAfter, later, earlier, nil))
}

func TestEvaluate_DateOps_MillisNumber(t *testing.T) {
	earlier := fval.Float64(1000)
	later := fval.Float64(2000)
	assert.True(t, Evaluate(fmodel.OpBefore, earlier, later, nil))
}

func TestEvaluate_SemVerOps(t *testing.T) {
	assert.True(t, Evaluate(fmodel.OpSemVerEqual, fval.String("2.0.0"), fval.String("2.0"), nil))
	assert.True(t, Evaluate(fmodel.OpSemVerLessThan, fval.String("1.9.0"), fval.String("2.0.0"), nil))
	assert.True(t, Evaluate(fmodel.OpSemVerGreaterThan, fval.String("2.1.0"), fval.String("2.0.0"), nil))
	assert.False(t, Evaluate(fmodel.OpSemVerEqual, fval.String("not-a-version"), fval.String("2.0.0"), nil))
}

func TestEvaluate_UnknownOperatorNeverMatches(t *testing.T) {
	assert.False(t, Evaluate(fmodel.OpSegmentMatch, fval.String("seg"), fval.String("seg"), nil))
}
