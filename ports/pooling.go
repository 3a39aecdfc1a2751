package ports

import (
	"context"

	"gometa/domain/meta"
)

// PoolingPort combines study-level estimates into fixed- and random-effects
// summaries with heterogeneity statistics.
type PoolingPort interface {
	Pool(ctx context.Context, effects, ses []float64, opts PoolOptions) (*meta.Pooling, error)
}

// PoolOptions controls pooling behavior.
type PoolOptions struct {
	// Level is the confidence level, e.g. 0.95. Zero means 0.95.
	Level float64

	// HartungKnapp switches the random-effects CI to the Hartung-Knapp
	// adjustment (t quantile, adjusted standard error).
	HartungKnapp bool

	// Prediction requests a prediction interval (needs at least 3 studies).
	Prediction bool
}

// WithDefaults fills unset options.
func (o PoolOptions) WithDefaults() PoolOptions {
	if o.Level <= 0 || o.Level >= 1 {
		o.Level = 0.95
	}
	return o
}
