package evaluation

import (
	"github.com/flagkit/core/internal/bucketing"
	"github.com/flagkit/core/internal/fctx"
	"github.com/flagkit/core/internal/fmodel"
)

// variationFor resolves a VariationOrRollout to a concrete variation index,
// bucketing by the flag's salt when it's a rollout/experiment (spec.md
// §4.1-§4.2).
func variationFor(vor fmodel.VariationOrRollout, flag *fmodel.Flag, context fctx.Context) (int, bool, error) {
	return bucketing.Variation(vor, flag.Key, context, flag.Salt)
}
