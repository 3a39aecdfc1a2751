// Package pooling implements inverse-variance meta-analysis pooling with a
// DerSimonian-Laird between-study variance estimate.
package pooling

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// Engine pools study-level estimates into fixed- and random-effects
// summaries. It is stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a pooling engine.
func NewEngine() *Engine {
	return &Engine{}
}

var _ ports.PoolingPort = (*Engine)(nil)

// Pool combines effects and standard errors into pooled estimates.
// A single study pools to itself with zero heterogeneity.
func (e *Engine) Pool(ctx context.Context, effects, ses []float64, opts ports.PoolOptions) (*meta.Pooling, error) {
	opts = opts.WithDefaults()

	k := len(effects)
	if k == 0 {
		return nil, fmt.Errorf("%w: no studies to pool", core.ErrInvalidInput)
	}
	if len(ses) != k {
		return nil, fmt.Errorf("%w: %d effects but %d standard errors",
			core.ErrInvalidInput, k, len(ses))
	}
	for i, se := range ses {
		if math.IsNaN(se) || se <= 0 {
			return nil, fmt.Errorf("%w: se[%d] = %v", core.ErrInvalidSE, i, se)
		}
		if math.IsNaN(effects[i]) || math.IsInf(effects[i], 0) {
			return nil, fmt.Errorf("%w: effect[%d] = %v", core.ErrInvalidInput, i, effects[i])
		}
	}

	// Fixed effect: weights 1/se^2
	var sumW, sumWE, sumW2 float64
	for i := range effects {
		w := 1 / (ses[i] * ses[i])
		sumW += w
		sumWE += w * effects[i]
		sumW2 += w * w
	}
	teFixed := sumWE / sumW
	seFixed := math.Sqrt(1 / sumW)

	// Cochran's Q and DerSimonian-Laird tau^2
	var q float64
	for i := range effects {
		w := 1 / (ses[i] * ses[i])
		d := effects[i] - teFixed
		q += w * d * d
	}
	df := k - 1

	tau2 := 0.0
	if df > 0 {
		c := sumW - sumW2/sumW
		if c > 0 {
			tau2 = math.Max(0, (q-float64(df))/c)
		}
	}

	// Random effects: weights 1/(se^2 + tau^2)
	var sumWR, sumWRE float64
	for i := range effects {
		w := 1 / (ses[i]*ses[i] + tau2)
		sumWR += w
		sumWRE += w * effects[i]
	}
	teRandom := sumWRE / sumWR
	seRandom := math.Sqrt(1 / sumWR)

	alpha := 1 - opts.Level
	zq := distuv.UnitNormal.Quantile(1 - alpha/2)

	fixed := meta.Pooled{
		Effect: teFixed,
		SE:     seFixed,
		Lower:  teFixed - zq*seFixed,
		Upper:  teFixed + zq*seFixed,
		Stat:   teFixed / seFixed,
		P:      2 * (1 - distuv.UnitNormal.CDF(math.Abs(teFixed/seFixed))),
		Model:  meta.ModelFixed,
	}

	random := meta.Pooled{
		Effect: teRandom,
		SE:     seRandom,
		Model:  meta.ModelRandom,
	}
	if opts.HartungKnapp && k > 1 {
		// Hartung-Knapp: t quantile with the weighted residual variance
		var qr float64
		for i := range effects {
			w := 1 / (ses[i]*ses[i] + tau2)
			d := effects[i] - teRandom
			qr += w * d * d
		}
		seHK := math.Sqrt(qr / (float64(k-1) * sumWR))
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(k - 1)}
		tq := tDist.Quantile(1 - alpha/2)

		random.SE = seHK
		random.Lower = teRandom - tq*seHK
		random.Upper = teRandom + tq*seHK
		if seHK > 0 {
			random.Stat = teRandom / seHK
			random.P = 2 * (1 - tDist.CDF(math.Abs(random.Stat)))
		} else {
			random.P = 1
		}
	} else {
		random.Lower = teRandom - zq*seRandom
		random.Upper = teRandom + zq*seRandom
		random.Stat = teRandom / seRandom
		random.P = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(random.Stat)))
	}

	pooling := &meta.Pooling{
		K:            k,
		Fixed:        fixed,
		Random:       random,
		Het:          heterogeneity(effects, ses, q, df, tau2, opts.Level),
		Level:        opts.Level,
		HartungKnapp: opts.HartungKnapp,
	}

	if opts.Prediction && k >= 3 {
		tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(k - 2)}
		tq := tDist.Quantile(1 - alpha/2)
		sePred := math.Sqrt(tau2 + seRandom*seRandom)
		pooling.Predict = &meta.PredictionInterval{
			Lower: teRandom - tq*sePred,
			Upper: teRandom + tq*sePred,
		}
	}

	return pooling, nil
}
