package bias

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// Begg is the Begg-Mazumdar rank correlation test: Kendall's score between
// variance-standardized effects and sampling variances.
type Begg struct{}

// NewBegg creates a Begg rank correlation test.
func NewBegg() *Begg {
	return &Begg{}
}

var _ ports.AsymmetryPort = (*Begg)(nil)

// Test computes the tie-corrected Kendall score with a normal approximation.
func (t *Begg) Test(ctx context.Context, effects, ses []float64) (*meta.BiasTest, error) {
	k := len(effects)
	if k != len(ses) {
		return nil, fmt.Errorf("%w: %d effects but %d standard errors",
			core.ErrInvalidInput, k, len(ses))
	}
	if k < MinStudies {
		return nil, core.NewInsufficientDataError(k, MinStudies)
	}

	// Fixed-effect center for standardization
	var sumW, sumWE float64
	for i := range effects {
		if ses[i] <= 0 || math.IsNaN(ses[i]) {
			return nil, fmt.Errorf("%w: se[%d] = %v", core.ErrInvalidSE, i, ses[i])
		}
		w := 1 / (ses[i] * ses[i])
		sumW += w
		sumWE += w * effects[i]
	}
	center := sumWE / sumW
	varFixed := 1 / sumW

	std := make([]float64, k)
	variances := make([]float64, k)
	for i := range effects {
		variances[i] = ses[i] * ses[i]
		std[i] = (effects[i] - center) / math.Sqrt(variances[i]-varFixed)
	}

	score, seScore := kendallScore(std, variances)

	statistic := 0.0
	p := 1.0
	if seScore > 0 {
		statistic = score / seScore
		p = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(statistic)))
	}

	return &meta.BiasTest{
		Method:    meta.BiasBegg,
		Statistic: statistic,
		P:         p,
		Bias:      score,
		SEBias:    seScore,
	}, nil
}

// kendallScore returns Kendall's S for the pairing of x with y and the
// standard error of S under the null, with tie corrections.
func kendallScore(x, y []float64) (score, se float64) {
	n := len(x)
	s := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s += sign(x[j]-x[i]) * sign(y[j]-y[i])
		}
	}

	fn := float64(n)
	v0 := fn * (fn - 1) * (2*fn + 5)
	vt := tieTerm(x, func(t float64) float64 { return t * (t - 1) * (2*t + 5) })
	vu := tieTerm(y, func(t float64) float64 { return t * (t - 1) * (2*t + 5) })

	v1 := tieTerm(x, func(t float64) float64 { return t * (t - 1) }) *
		tieTerm(y, func(t float64) float64 { return t * (t - 1) }) /
		(2 * fn * (fn - 1))
	v2 := 0.0
	if n > 2 {
		v2 = tieTerm(x, func(t float64) float64 { return t * (t - 1) * (t - 2) }) *
			tieTerm(y, func(t float64) float64 { return t * (t - 1) * (t - 2) }) /
			(9 * fn * (fn - 1) * (fn - 2))
	}

	variance := (v0-vt-vu)/18 + v1 + v2
	if variance <= 0 {
		return s, 0
	}
	return s, math.Sqrt(variance)
}

// tieTerm sums f(size) over groups of tied values.
func tieTerm(values []float64, f func(float64) float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	sum := 0.0
	for _, c := range counts {
		if c > 1 {
			sum += f(float64(c))
		}
	}
	return sum
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
