// Package bucketing implements the deterministic context-to-bucket hash used
// by percentage rollouts and experiments (spec.md §4.1). Grounded on
// original_source/libs/server-sdk/src/evaluation/bucketing.cpp, since the
// algorithm is not vendored as Go anywhere in the retrieval pack.
package bucketing

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/fval"
)

// maxHash64 is 0x0FFFFFFFFFFFFFFF, the denominator used to normalize the
// first 15 hex chars of the SHA-1 digest into [0,1).
const maxHash64 = float64(0x0FFFFFFFFFFFFFFF)

// Presence reports whether the context had a value for the chosen bucketing
// attribute.
type Presence int

const (
	Present Presence = iota
	Absent
)

// Bucket hashes a context attribute to a value in [0,1) for use in rollouts
// and experiments (spec.md §4.1).
//
// If isExperiment is true, attrRef is forced to "key" regardless of what was
// passed in. If the context has no individual context for contextKind at
// all, the result is (0, Absent) — this is how contexts outside an
// experiment's population avoid being placed into it.
func Bucket(context fctx.Context, attrRef fctx.AttrRef, prefix string, isExperiment bool, contextKind string) (float64, Presence) {
	if isExperiment {
		attrRef = fctx.NewLiteralAttrRef("key")
	}

	individual := context.IndividualContextByKind(contextKind)
	if !individual.IsDefined() {
		return 0, Absent
	}

	value := context.Get(contextKind, attrRef)
	bucketValue, ok := bucketableStringValue(value)
	if !ok {
		return 0, Present
	}

	input := prefix + "." + bucketValue
	sum := sha1.Sum([]byte(input))
	hexDigest := hex.EncodeToString(sum[:])
	hash15 := hexDigest[:15]
	n, err := strconv.ParseUint(hash15, 16, 64)
	if err != nil {
		return 0, Present
	}
	return float64(n) / maxHash64, Present
}

// bucketableStringValue converts a Value into its bucketing string form.
// Strings pass through unchanged. Integer numbers (no fractional part,
// non-negative) stringify as decimal. Anything else (floats with a
// fractional part, negative numbers, bool/array/object/null) is not
// bucketable.
func bucketableStringValue(v fval.Value) (string, bool) {
	switch v.Type() {
	case fval.StringType:
		return v.StringValue(), true
	case fval.NumberType:
		if !v.IsInt() {
			return "", false
		}
		n := v.IntValue()
		if n < 0 {
			return "", false
		}
		return strconv.Itoa(n), true
	default:
		return "", false
	}
}

// Seed builds the hash prefix for a seeded rollout (an experiment carrying
// an explicit seed): the decimal representation of the seed.
func Seed(seed int64) string { return strconv.FormatInt(seed, 10) }

// KeySalt builds the hash prefix for an unseeded rollout: "<key>.<salt>".
func KeySalt(key, salt string) string { return key + "." + salt }

// ErrNoVariations is returned by Variation when the rollout has an empty
// Variations list.
var ErrNoVariations = fmt.Errorf("bucketing: rollout has no variations")

// Variation resolves a VariationOrRollout to a concrete variation index
// (spec.md §4.1's Variation algorithm).
//
// A plain variation index returns (index, false, nil). A rollout buckets the
// context and walks its weighted variations in order; the bucket value
// "pins" to the last entry if it exceeds the cumulative weight, guaranteeing
// every context is assigned even when weights sum to under 100000.
func Variation(vor fmodel.VariationOrRollout, flagKey string, context fctx.Context, salt string) (int, bool, error) {
	if vor.HasVariation {
		return vor.Variation, false, nil
	}
	rollout := vor.Rollout
	if len(rollout.Variations) == 0 {
		return 0, false, ErrNoVariations
	}

	contextKind := rollout.ContextKind
	if contextKind == "" {
		contextKind = fctx.DefaultKind
	}

	var prefix string
	if rollout.Seed != nil {
		prefix = Seed(*rollout.Seed)
	} else {
		prefix = KeySalt(flagKey, salt)
	}

	bucketBy := rollout.BucketBy
	if bucketBy.Depth() == 0 {
		bucketBy = fctx.NewLiteralAttrRef("key")
	}

	bucket, presence := Bucket(context, bucketBy, prefix, rollout.IsExperiment(), contextKind)
	if presence == Absent {
		return rollout.Variations[0].Variation, false, nil
	}

	var cumulative float64
	for _, wv := range rollout.Variations {
		cumulative += float64(wv.Weight) / 100000.0
		if bucket < cumulative {
			inExperiment := rollout.IsExperiment() && !wv.Untracked
			return wv.Variation, inExperiment, nil
		}
	}
	last := rollout.Variations[len(rollout.Variations)-1]
	inExperiment := rollout.IsExperiment() && !last.Untracked
	return last.Variation, inExperiment, nil
}
