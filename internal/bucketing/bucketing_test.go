package bucketing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// Scenario 2: rollout bucketing (spec.md §8).
func TestBucket_RolloutBucketing(t *testing.T) {
	cases := []struct {
		key      string
		expected float64
	}{
		{"userKeyA", 0.42157587},
		{"userKeyB", 0.6708485},
		{"userKeyC", 0.10343106},
	}
	for _, c := range cases {
		bucket, presence := Bucket(fctx.New(c.key), fctx.NewLiteralAttrRef("key"), KeySalt("hashKey", "saltyA"), false, fctx.DefaultKind)
		require.Equal(t, Present, presence)
		assert.InDelta(t, c.expected, bucket, 1e-7)
	}
}

func TestVariation_RolloutBucketing(t *testing.T) {
	vor := fmodel.VariationOrRollout{
		Rollout: fmodel.Rollout{
			Variations: []fmodel.WeightedVariation{
				{Variation: 0, Weight: 60000},
				{Variation: 1, Weight: 40000},
			},
		},
	}
	expected := map[string]int{"userKeyA": 0, "userKeyB": 1, "userKeyC": 0}
	for key, want := range expected {
		idx, inExp, err := Variation(vor, "hashKey", fctx.New(key), "saltyA")
		require.NoError(t, err)
		assert.Equal(t, want, idx)
		assert.False(t, inExp)
	}
}

// Scenario 3: experiment with seed (spec.md §8).
func TestVariation_ExperimentWithSeed(t *testing.T) {
	seed := int64(61)
	vor := fmodel.VariationOrRollout{
		Rollout: fmodel.Rollout{
			Kind: fmodel.RolloutKindExperiment,
			Seed: &seed,
			BucketBy: fctx.NewLiteralAttrRef("numberAttr"),
			Variations: []fmodel.WeightedVariation{
				{Variation: 0, Weight: 10000},
				{Variation: 1, Weight: 20000},
				{Variation: 0, Weight: 70000, Untracked: true},
			},
		},
	}
	builder := fctx.NewBuilder("userKeyC")
	builder.SetInt("numberAttr", 0)
	// Experiments always bucket by "key" regardless of BucketBy, so the
	// numberAttr value here is a distractor matching spec.md scenario 3's
	// framing; what determines the bucket is the context key itself.
	// With seed 61, "userKeyC" buckets to about 0.924, inside the third
	// (untracked) slice, whose variation is 0.
	ctx := builder.Build()

	idx, inExp, err := Variation(vor, "hashKey", ctx, "saltyA")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.False(t, inExp) // chosen slice is untracked
}

func TestVariation_AbsentBucketingContextKind(t *testing.T) {
	vor := fmodel.VariationOrRollout{
		Rollout: fmodel.Rollout{
			ContextKind: "org",
			Variations: []fmodel.WeightedVariation{
				{Variation: 0, Weight: 50000},
				{Variation: 1, Weight: 50000},
			},
		},
	}
	idx, inExp, err := Variation(vor, "flagKey", fctx.New("user1"), "salt")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.False(t, inExp)
}

func TestVariation_PlainVariation(t *testing.T) {
	vor := fmodel.VariationOrRollout{Variation: 3, HasVariation: true}
	idx, inExp, err := Variation(vor, "flagKey", fctx.New("u"), "salt")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.False(t, inExp)
}

func TestVariation_NoVariationsError(t *testing.T) {
	vor := fmodel.VariationOrRollout{Rollout: fmodel.Rollout{}}
	_, _, err := Variation(vor, "flagKey", fctx.New("u"), "salt")
	assert.ErrorIs(t, err, ErrNoVariations)
}

func TestBucketableStringValue(t *testing.T) {
	tests := []struct {
		name string
		v    fval.Value
		want string
		ok   bool
	}{
		{"string", fval.String("abc"), "abc", true},
		{"positive int", fval.Int(42), "42", true},
		{"negative int", fval.Int(-1), "", false},
		{"fractional", fval.Float64(1.5), "", false},
		{"bool", fval.Bool(true), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bucketableStringValue(tt.v)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
