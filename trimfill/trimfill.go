// Package trimfill implements the Duval-Tweedie trim-and-fill method for
// detecting and correcting small-study publication bias in a meta-analysis.
// It estimates how many studies are missing from one funnel side, trims the
// most extreme opposite-side studies until the estimate stabilizes, then
// imputes the missing studies as mirror images and re-pools with them.
package trimfill

import (
	"context"
	"fmt"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/domain/study"
	"gometa/internal"
	"gometa/ports"
)

// Options configures a trim-and-fill analysis.
type Options struct {
	// Estimator picks the missing-count estimator; empty means L0.
	Estimator Estimator

	// Side forces the missing side; SideAuto detects it from asymmetry.
	Side meta.Side

	// BiasMethod names the asymmetry test that detects the side when Side
	// is auto; empty means Egger regression.
	BiasMethod string

	// CenterModel is the pooled model centering each trim round.
	// Empty means fixed-effect, matching the usual fixed-random hybrid.
	CenterModel meta.Model

	// Level is the confidence level for pooled estimates; zero means 0.95.
	Level float64

	HartungKnapp bool
	Prediction   bool

	// MaxIterations caps the trim loop; zero means 50.
	MaxIterations int
}

// WithDefaults fills unset options.
func (o Options) WithDefaults() Options {
	if o.Estimator == "" {
		o.Estimator = EstimatorL0
	}
	o.CenterModel = centerModelOrDefault(o.CenterModel)
	if o.Level <= 0 || o.Level >= 1 {
		o.Level = 0.95
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Analyzer runs trim-and-fill against a pooling engine and asymmetry tests.
type Analyzer struct {
	pool  ports.PoolingPort
	egger ports.AsymmetryPort
	begg  ports.AsymmetryPort
	log   *internal.Logger
}

// NewAnalyzer creates an analyzer over the given ports.
func NewAnalyzer(pool ports.PoolingPort, egger, begg ports.AsymmetryPort) *Analyzer {
	return &Analyzer{
		pool:  pool,
		egger: egger,
		begg:  begg,
		log:   internal.DefaultLogger.WithComponent("trimfill"),
	}
}

// Run executes the full trim-and-fill analysis on a study set.
//
// Sets with fewer than three estimable studies produce an empty result with
// a warning, not an error. All other failures (pooling, detection,
// non-convergence) surface as errors.
func (a *Analyzer) Run(ctx context.Context, set *study.Set, opts Options) (*meta.Result, error) {
	opts = opts.WithDefaults()
	if _, err := ParseEstimator(string(opts.Estimator)); err != nil {
		return nil, err
	}
	biasMethod, err := meta.ParseBiasMethod(opts.BiasMethod)
	if err != nil {
		return nil, err
	}

	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: empty study set", core.ErrInvalidInput)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}

	result := &meta.Result{
		ID:          core.AnalysisID(core.NewID()),
		SetID:       set.ID,
		Label:       set.Label,
		Fingerprint: set.Fingerprint(),
		Side:        opts.Side,
		Estimator:   string(opts.Estimator),
		CreatedAt:   core.Now(),
	}

	estimable := set.Estimable()
	k := len(estimable)
	result.K = k

	if k <= 2 {
		a.log.Warn("minimal number of three studies required, got %d", k)
		result.AddWarning(fmt.Sprintf("trim-and-fill needs at least three studies, got %d", k))
		return result, nil
	}

	sub := set.Subset(estimable)
	effects := sub.Effects()
	ses := sub.SEs()
	labels := sub.Labels()

	poolOpts := ports.PoolOptions{
		Level:        opts.Level,
		HartungKnapp: opts.HartungKnapp,
		Prediction:   opts.Prediction,
	}

	original, err := a.pool.Pool(ctx, effects, ses, poolOpts)
	if err != nil {
		return nil, fmt.Errorf("pooling observed studies failed: %w", err)
	}
	result.Original = original

	side := opts.Side
	if side == meta.SideAuto {
		detected, test, err := a.detectSide(ctx, effects, ses, biasMethod)
		if err != nil {
			return nil, err
		}
		side = detected
		result.Bias = test
		a.log.Debug("detected missing side %s (%s bias %.4f)", side, test.Method, test.Bias)
	}
	result.Side = side

	// Canonical orientation is missing-left; a right-missing set is
	// negated, processed, and negated back during fill.
	flipped := side != meta.SideLeft
	oriented := effects
	if flipped {
		oriented = make([]float64, len(effects))
		for i, e := range effects {
			oriented[i] = -e
		}
	}

	perm := study.SortAscending(oriented)
	sortedEffects := perm.Floats(oriented)
	sortedSEs := perm.Floats(ses)
	sortedLabels := perm.Strings(labels)

	st, err := a.iterate(ctx, sortedEffects, sortedSEs, opts)
	if err != nil {
		return nil, err
	}
	result.K0 = st.K0
	result.Iterations = st.Iteration

	filled := fillMirrored(sortedEffects, sortedSEs, sortedLabels, st.Center, st.K0, flipped)
	filledSet := sub.Append(filled...)
	result.Filled = filledSet

	adjusted, err := a.pool.Pool(ctx, filledSet.Effects(), filledSet.SEs(), poolOpts)
	if err != nil {
		return nil, fmt.Errorf("pooling filled set failed: %w", err)
	}
	result.Adjusted = adjusted

	if st.K0 > 0 {
		a.log.Info("imputed %d studies on the %s side after %d iterations",
			st.K0, side, st.Iteration)
	}

	return result, nil
}
