package trimfill

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gometa/domain/core"
)

// Estimator selects the missing-study count estimator.
type Estimator string

const (
	// EstimatorL0 is the linear estimator, the usual default.
	EstimatorL0 Estimator = "L0"
	// EstimatorR0 is the rightmost-run estimator.
	EstimatorR0 Estimator = "R0"
	// EstimatorQ0 is the quadratic estimator.
	EstimatorQ0 Estimator = "Q0"
)

// ParseEstimator parses a user-supplied estimator name.
func ParseEstimator(s string) (Estimator, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "L", "L0":
		return EstimatorL0, nil
	case "R", "R0":
		return EstimatorR0, nil
	case "Q", "Q0":
		return EstimatorQ0, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrBadEstimator, s)
	}
}

// missingEstimate is one round of missing-count estimation.
type missingEstimate struct {
	Raw float64 // estimate before rounding
	SE  float64
	K0  int // rounded half-up, floored at zero
}

// estimateMissing ranks effects about center and applies the chosen
// estimator. Effects must be oriented so that studies are missing on the
// left (observed excess on the right).
func estimateMissing(effects []float64, center float64, est Estimator) missingEstimate {
	n := len(effects)
	centered := make([]float64, n)
	for i, e := range effects {
		centered[i] = e - center
	}

	r := signedRanks(centered)

	var raw, se float64
	switch est {
	case EstimatorR0:
		// Length of the rightmost run of positive residuals, minus one.
		// The largest rank among negative residuals bounds the run.
		maxNeg := 0.0
		for _, ri := range r {
			if ri < 0 && -ri > maxNeg {
				maxNeg = -ri
			}
		}
		raw = float64(n) - maxNeg - 1
		se = math.Sqrt(2*math.Max(0, raw) + 2)

	case EstimatorQ0:
		s := sumPositiveRanks(r)
		arg := 2*float64(n)*float64(n) - 4*s + 0.25
		if arg < 0 {
			arg = 0
		}
		raw = float64(n) - 0.5 - math.Sqrt(arg)
		se = math.Sqrt(2 * wilcoxonVariance(n))

	default: // EstimatorL0
		s := sumPositiveRanks(r)
		raw = (4*s - float64(n)*float64(n+1)) / (2*float64(n) - 1)
		// var(L0) = 16 var(S) / (2n-1)^2 with S the signed-rank sum
		se = 4 * math.Sqrt(wilcoxonVariance(n)) / (2*float64(n) - 1)
	}

	k0 := 0
	if raw+0.5 > 0 {
		k0 = int(math.Floor(raw + 0.5))
	}

	return missingEstimate{Raw: raw, SE: se, K0: k0}
}

// signedRanks returns rank(|c|) * sign(c) with average ranks for ties.
func signedRanks(centered []float64) []float64 {
	n := len(centered)
	abs := make([]float64, n)
	for i, c := range centered {
		abs[i] = math.Abs(c)
	}

	ranks := averageRanks(abs)
	for i, c := range centered {
		if c < 0 {
			ranks[i] = -ranks[i]
		} else if c == 0 {
			ranks[i] = 0
		}
	}
	return ranks
}

// averageRanks converts values to 1-based ranks, averaging ties.
func averageRanks(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return []float64{}
	}

	type pair struct {
		value float64
		index int
	}

	pairs := make([]pair, n)
	for i, val := range data {
		pairs[i] = pair{value: val, index: i}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)

	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}

		groupSize := j - i
		avgRank := float64(i+1) + float64(groupSize-1)/2.0

		for k := i; k < j; k++ {
			ranks[pairs[k].index] = avgRank
		}

		i = j
	}

	return ranks
}

func sumPositiveRanks(r []float64) float64 {
	s := 0.0
	for _, ri := range r {
		if ri > 0 {
			s += ri
		}
	}
	return s
}

// wilcoxonVariance is the null variance of the signed-rank sum,
// n(n+1)(2n+1)/24.
func wilcoxonVariance(n int) float64 {
	fn := float64(n)
	return fn * (fn + 1) * (2*fn + 1) / 24
}
