package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

func TestContainsContext_IncludeOverridesExclude(t *testing.T) {
	seg := &fmodel.Segment{
		Key:      "seg",
		Version:  1,
		Included: []string{"bob"},
		Excluded: []string{"bob"},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{seg})
	assert.True(t, e.containsContext("seg", fctx.New("bob"), map[string]bool{}))
}

func TestContainsContext_ExcludeSuppressesRules(t *testing.T) {
	seg := &fmodel.Segment{
		Key:      "seg",
		Version:  1,
		Excluded: []string{"bob"},
		Rules: []fmodel.SegmentRule{
			{Clauses: []fmodel.Clause{
				{Attribute: fctx.NewLiteralAttrRef("key"), Op: fmodel.OpIn, Values: []fval.Value{fval.String("bob")}},
			}},
		},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{seg})
	assert.False(t, e.containsContext("seg", fctx.New("bob"), map[string]bool{}))
}

func TestContainsContext_RuleMatch(t *testing.T) {
	seg := &fmodel.Segment{
		Key:     "seg",
		Version: 1,
		Rules: []fmodel.SegmentRule{
			{Clauses: []fmodel.Clause{
				{Attribute: fctx.NewLiteralAttrRef("email"), Op: fmodel.OpEndsWith, Values: []fval.Value{fval.String("@example.com")}},
			}},
		},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{seg})

	builder := fctx.NewBuilder("u1")
	builder.SetString("email", "u1@example.com")
	c := builder.Build()
	require.True(t, c.Valid())
	assert.True(t, e.containsContext("seg", c, map[string]bool{}))

	builder2 := fctx.NewBuilder("u2")
	builder2.SetString("email", "u2@other.com")
	assert.False(t, e.containsContext("seg", builder2.Build(), map[string]bool{}))
}

func TestContainsContext_CycleGuard(t *testing.T) {
	segA := &fmodel.Segment{
		Key:     "segA",
		Version: 1,
		Rules: []fmodel.SegmentRule{
			{Clauses: []fmodel.Clause{{Op: fmodel.OpSegmentMatch, Values: []fval.Value{fval.String("segB")}}}},
		},
	}
	segB := &fmodel.Segment{
		Key:     "segB",
		Version: 1,
		Rules: []fmodel.SegmentRule{
			{Clauses: []fmodel.Clause{{Op: fmodel.OpSegmentMatch, Values: []fval.Value{fval.String("segA")}}}},
		},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{segA, segB})
	assert.False(t, e.containsContext("segA", fctx.New("u"), map[string]bool{}))
}

func TestContainsContext_UnboundedSegmentAlwaysReturnsFalse(t *testing.T) {
	seg := &fmodel.Segment{
		Key:       "seg",
		Version:   1,
		Unbounded: true,
		Included:  []string{"bob"},
		Rules: []fmodel.SegmentRule{
			{Clauses: []fmodel.Clause{
				{Attribute: fctx.NewLiteralAttrRef("key"), Op: fmodel.OpIn, Values: []fval.Value{fval.String("bob")}},
			}},
		},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{seg})
	assert.False(t, e.containsContext("seg", fctx.New("bob"), map[string]bool{}))
}

func TestContainsContext_WeightedRule(t *testing.T) {
	seg := &fmodel.Segment{
		Key:     "seg",
		Version: 1,
		Salt:    "saltyA",
		Rules: []fmodel.SegmentRule{
			{
				HasWeight: true,
				Weight:    100000,
				Clauses: []fmodel.Clause{
					{Attribute: fctx.NewLiteralAttrRef("key"), Op: fmodel.OpIn, Values: []fval.Value{fval.String("userKeyA")}},
				},
			},
		},
	}
	e, _ := newTestEvaluator(t, nil, []*fmodel.Segment{seg})
	assert.True(t, e.containsContext("seg", fctx.New("userKeyA"), map[string]bool{}))
}
