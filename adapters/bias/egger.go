// Package bias implements small-study asymmetry tests used to orient
// trim-and-fill and to report publication bias.
package bias

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// MinStudies is the smallest set an asymmetry test accepts.
const MinStudies = 3

// Egger is the Egger regression test: the standardized effect is regressed
// on precision, and a non-zero intercept indicates small-study asymmetry.
type Egger struct{}

// NewEgger creates an Egger regression test.
func NewEgger() *Egger {
	return &Egger{}
}

var _ ports.AsymmetryPort = (*Egger)(nil)

// Test regresses effect/se on 1/se and tests the intercept against zero
// with k-2 degrees of freedom.
func (t *Egger) Test(ctx context.Context, effects, ses []float64) (*meta.BiasTest, error) {
	k := len(effects)
	if k != len(ses) {
		return nil, fmt.Errorf("%w: %d effects but %d standard errors",
			core.ErrInvalidInput, k, len(ses))
	}
	if k < MinStudies {
		return nil, core.NewInsufficientDataError(k, MinStudies)
	}

	x := make([]float64, k) // precision
	y := make([]float64, k) // standardized effect
	for i := range effects {
		if ses[i] <= 0 || math.IsNaN(ses[i]) {
			return nil, fmt.Errorf("%w: se[%d] = %v", core.ErrInvalidSE, i, ses[i])
		}
		x[i] = 1 / ses[i]
		y[i] = effects[i] / ses[i]
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(intercept) || math.IsNaN(slope) {
		return nil, fmt.Errorf("%w: degenerate regression (all precisions equal?)", core.ErrNotEstimable)
	}

	// Residual variance and the intercept's standard error
	var rss, sxx, xBar float64
	for _, xi := range x {
		xBar += xi
	}
	xBar /= float64(k)
	for i := range x {
		r := y[i] - intercept - slope*x[i]
		rss += r * r
		d := x[i] - xBar
		sxx += d * d
	}
	if sxx <= 0 {
		return nil, fmt.Errorf("%w: zero precision spread", core.ErrNotEstimable)
	}
	s2 := rss / float64(k-2)
	seIntercept := math.Sqrt(s2 * (1/float64(k) + xBar*xBar/sxx))

	df := k - 2
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	statistic := 0.0
	p := 1.0
	if seIntercept > 0 {
		statistic = intercept / seIntercept
		p = 2 * (1 - tDist.CDF(math.Abs(statistic)))
	}

	return &meta.BiasTest{
		Method:    meta.BiasEgger,
		Statistic: statistic,
		DF:        df,
		P:         p,
		Bias:      intercept,
		SEBias:    seIntercept,
	}, nil
}
