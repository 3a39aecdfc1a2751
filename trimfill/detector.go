package trimfill

import (
	"context"
	"fmt"

	"gometa/domain/meta"
)

// detectSide chooses the funnel side with missing studies from the sign of
// the asymmetry test's bias coefficient: a positive bias means small studies
// skew positive, so the missing ones sit on the left.
func (a *Analyzer) detectSide(ctx context.Context, effects, ses []float64, method string) (meta.Side, *meta.BiasTest, error) {
	asym := a.egger
	if method == meta.BiasBegg {
		asym = a.begg
	}

	test, err := asym.Test(ctx, effects, ses)
	if err != nil {
		return meta.SideAuto, nil, fmt.Errorf("asymmetry detection failed: %w", err)
	}

	if test.Bias > 0 {
		return meta.SideLeft, test, nil
	}
	return meta.SideRight, test, nil
}
