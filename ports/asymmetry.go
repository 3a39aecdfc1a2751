package ports

import (
	"context"

	"gometa/domain/meta"
)

// AsymmetryPort tests a study set for small-study (funnel plot) asymmetry.
// The sign of the returned bias coefficient orients trim-and-fill.
type AsymmetryPort interface {
	Test(ctx context.Context, effects, ses []float64) (*meta.BiasTest, error)
}
