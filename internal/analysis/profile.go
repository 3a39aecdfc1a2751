// Package analysis computes descriptive summaries of study sets: the
// distribution of effects and standard errors before any pooling happens.
// The CLI and the API use these to sanity-check inputs, not to draw
// inferential conclusions.
package analysis

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"gometa/domain/core"
	"gometa/domain/study"
)

// Profile summarizes a study set's effect and precision distributions.
type Profile struct {
	Studies   int `json:"studies"`
	Estimable int `json:"estimable"`

	Effect EffectStats    `json:"effect"`
	SE     PrecisionStats `json:"se"`
}

// EffectStats describes the spread of observed effect sizes.
type EffectStats struct {
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"`
}

// PrecisionStats describes the range of standard errors, the vertical axis
// of a funnel plot.
type PrecisionStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Ratio  float64 `json:"ratio"` // max/min, how uneven study precision is
}

// Describe profiles the estimable studies of a set.
func Describe(set *study.Set) (*Profile, error) {
	if set == nil || set.Len() == 0 {
		return nil, fmt.Errorf("%w: empty study set", core.ErrInvalidInput)
	}

	estimable := set.Estimable()
	if len(estimable) == 0 {
		return nil, fmt.Errorf("%w: no estimable studies", core.ErrInsufficientData)
	}

	sub := set.Subset(estimable)
	effects := sub.Effects()
	ses := sub.SEs()

	profile := &Profile{
		Studies:   set.Len(),
		Estimable: len(estimable),
		Effect:    describeEffects(effects),
		SE:        describePrecision(ses),
	}

	return profile, nil
}

func describeEffects(data []float64) EffectStats {
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	stdDev, _ := stats.StandardDeviation(data)
	minVal, _ := stats.Min(data)
	maxVal, _ := stats.Max(data)
	q25, _ := stats.Percentile(data, 25)
	q75, _ := stats.Percentile(data, 75)

	return EffectStats{
		Mean:     mean,
		Median:   median,
		StdDev:   stdDev,
		Min:      minVal,
		Max:      maxVal,
		Q25:      q25,
		Q75:      q75,
		Skewness: skewness(data, mean, stdDev),
		Outliers: countOutliers(data, q25, q75),
	}
}

func describePrecision(ses []float64) PrecisionStats {
	minVal, _ := stats.Min(ses)
	maxVal, _ := stats.Max(ses)
	median, _ := stats.Median(ses)

	ratio := 0.0
	if minVal > 0 {
		ratio = maxVal / minVal
	}

	return PrecisionStats{
		Min:    minVal,
		Max:    maxVal,
		Median: median,
		Ratio:  ratio,
	}
}

// skewness computes the adjusted Fisher-Pearson coefficient. A skewed effect
// distribution is a first hint of funnel asymmetry.
func skewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubed := 0.0
	for _, x := range data {
		d := (x - mean) / stdDev
		sumCubed += d * d * d
	}

	return sumCubed / n * math.Sqrt(n*(n-1)) / (n - 2)
}

// countOutliers applies the 1.5 IQR fence.
func countOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lower := q25 - 1.5*iqr
	upper := q75 + 1.5*iqr

	count := 0
	for _, x := range data {
		if x < lower || x > upper {
			count++
		}
	}
	return count
}
