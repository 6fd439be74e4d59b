package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

func TestFlagDirectDependencies(t *testing.T) {
	flag := &fmodel.Flag{
		Key:           "f1",
		Prerequisites: []fmodel.Prerequisite{{Key: "f2"}},
		Rules: []fmodel.FlagRule{
			{Clauses: []fmodel.Clause{
				{Op: fmodel.OpSegmentMatch, Values: []fval.Value{fval.String("seg1")}},
			}},
		},
	}
	deps := FlagDirectDependencies(flag)
	assert.True(t, deps.Contains(fmodel.Key{Kind: fmodel.Flags, Key: "f2"}))
	assert.True(t, deps.Contains(fmodel.Key{Kind: fmodel.Segments, Key: "seg1"}))
	assert.Len(t, deps, 2)
}

func TestCalculateChanges_TransitiveClosure(t *testing.T) {
	tr := NewTracker()
	a := fmodel.Key{Kind: fmodel.Flags, Key: "a"}
	b := fmodel.Key{Kind: fmodel.Flags, Key: "b"}
	c := fmodel.Key{Kind: fmodel.Flags, Key: "c"}

	// a depends on b, b depends on c.
	tr.UpdateDependencies(a, Set{b: struct{}{}})
	tr.UpdateDependencies(b, Set{c: struct{}{}})

	out := NewSet()
	tr.CalculateChanges(c, out)
	assert.True(t, out.Contains(a))
	assert.True(t, out.Contains(b))
	assert.True(t, out.Contains(c))
}

func TestUpdateDependencies_ReindexesReverseMap(t *testing.T) {
	tr := NewTracker()
	a := fmodel.Key{Kind: fmodel.Flags, Key: "a"}
	b := fmodel.Key{Kind: fmodel.Flags, Key: "b"}
	c := fmodel.Key{Kind: fmodel.Flags, Key: "c"}

	tr.UpdateDependencies(a, Set{b: struct{}{}})
	out := NewSet()
	tr.CalculateChanges(b, out)
	assert.True(t, out.Contains(a))

	// a no longer depends on b, now depends on c.
	tr.UpdateDependencies(a, Set{c: struct{}{}})

	out2 := NewSet()
	tr.CalculateChanges(b, out2)
	assert.False(t, out2.Contains(a))

	out3 := NewSet()
	tr.CalculateChanges(c, out3)
	assert.True(t, out3.Contains(a))
}
