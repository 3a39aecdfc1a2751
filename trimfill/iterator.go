package trimfill

import (
	"context"
	"fmt"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// MissingSentinel is the K0 value reported when only one study is present
// and no missing count can be estimated.
const MissingSentinel = -9

// DefaultMaxIterations caps the trim loop.
const DefaultMaxIterations = 50

// State tracks one round of the trim iteration.
type State struct {
	K         int     // estimable studies entering the loop
	K0        int     // current missing-count estimate
	K0Prev    int     // estimate from the previous round
	Iteration int     // rounds completed
	Center    float64 // pooled center of the non-trimmed studies
	Converged bool
}

// iterate runs the trim loop on oriented, ascending-sorted effects until the
// missing-count estimate repeats. Each round pools the k-k0 smallest effects,
// re-centers, and re-estimates k0 over the full set. The estimate is clamped
// to k-1 before trimming so the kept slice is never empty.
func (a *Analyzer) iterate(ctx context.Context, effects, ses []float64, opts Options) (State, error) {
	k := len(effects)
	st := State{K: k, K0Prev: -1}

	if k == 1 {
		st.K0 = MissingSentinel
		st.Center = effects[0]
		st.Converged = true
		return st, nil
	}

	for st.K0Prev != st.K0 && st.Iteration < opts.MaxIterations {
		st.Iteration++
		st.K0Prev = st.K0

		keep := k - st.K0
		pooled, err := a.pool.Pool(ctx, effects[:keep], ses[:keep], ports.PoolOptions{Level: opts.Level})
		if err != nil {
			return st, fmt.Errorf("pooling trimmed subset failed: %w", err)
		}
		st.Center = pooled.ByModel(opts.CenterModel).Effect

		est := estimateMissing(effects, st.Center, opts.Estimator)
		st.K0 = est.K0
		if st.K0 > k-1 {
			st.K0 = k - 1
		}
	}

	if st.K0Prev != st.K0 {
		return st, fmt.Errorf("%w: k0 still moving (%d -> %d) after %d iterations",
			core.ErrNoConvergence, st.K0Prev, st.K0, st.Iteration)
	}

	st.Converged = true
	return st, nil
}

// centerModelOrDefault keeps the iteration centered on the fixed-effect
// estimate unless the caller asked for random.
func centerModelOrDefault(m meta.Model) meta.Model {
	if m == meta.ModelRandom {
		return meta.ModelRandom
	}
	return meta.ModelFixed
}
