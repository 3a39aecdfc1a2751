package study

import (
	"math"
)

// Study is a single study-level estimate entering a meta-analysis. Effect is
// on whatever scale the caller pools on (log odds ratio, standardized mean
// difference, raw mean difference); SE is its standard error on that scale.
type Study struct {
	Label  string  `json:"label"`
	Effect float64 `json:"effect"`
	SE     float64 `json:"se"`

	// Filled marks a study imputed by trim-and-fill rather than observed.
	Filled bool `json:"filled,omitempty"`

	// Excluded removes a study from computation while keeping it in the set.
	Excluded bool `json:"excluded,omitempty"`
}

// Estimable reports whether the study can contribute to pooling: finite
// effect, finite positive standard error, and not excluded.
func (s Study) Estimable() bool {
	if s.Excluded {
		return false
	}
	if math.IsNaN(s.Effect) || math.IsInf(s.Effect, 0) {
		return false
	}
	if math.IsNaN(s.SE) || math.IsInf(s.SE, 0) || s.SE <= 0 {
		return false
	}
	return true
}

// Variance returns the squared standard error.
func (s Study) Variance() float64 {
	return s.SE * s.SE
}

// Weight returns the inverse-variance weight, or 0 for non-estimable studies.
func (s Study) Weight() float64 {
	if !s.Estimable() {
		return 0
	}
	return 1 / (s.SE * s.SE)
}
