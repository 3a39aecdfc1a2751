package pooling

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"gometa/domain/meta"
)

// heterogeneity computes Q-based statistics with confidence intervals.
// With no degrees of freedom everything degenerates to its null value.
func heterogeneity(effects, ses []float64, q float64, df int, tau2, level float64) meta.Heterogeneity {
	het := meta.Heterogeneity{
		Q:    q,
		DF:   df,
		Tau2: tau2,
		Tau:  math.Sqrt(tau2),
	}

	if df <= 0 {
		het.P = 1
		het.H = 1
		het.HLower, het.HUpper = 1, 1
		return het
	}

	chi := distuv.ChiSquared{K: float64(df)}
	het.P = 1 - chi.CDF(q)

	het.H, het.HLower, het.HUpper = hWithCI(q, df, level)

	i2 := func(h float64) float64 { return (h*h - 1) / (h * h) }
	het.I2 = i2(het.H)
	het.I2Lower = i2(het.HLower)
	het.I2Upper = i2(het.HUpper)

	het.Tau2Lower, het.Tau2Upper = tau2CI(effects, ses, level)

	rb := func(t2 float64) float64 {
		if t2 <= 0 {
			return 0
		}
		sum := 0.0
		for _, se := range ses {
			sum += t2 / (t2 + se*se)
		}
		return sum / float64(len(ses))
	}
	het.Rb = rb(tau2)
	het.RbLower = rb(het.Tau2Lower)
	het.RbUpper = rb(het.Tau2Upper)

	return het
}

// hWithCI returns H floored at 1 and its CI from the log-H standard error.
// When the standard error is undefined (df <= 2 and Q <= df) the interval
// collapses to the point estimate.
func hWithCI(q float64, df int, level float64) (h, lower, upper float64) {
	fdf := float64(df)
	h = 1.0
	if q > 0 {
		h = math.Max(math.Sqrt(q/fdf), 1)
	}

	var seLogH float64
	switch {
	case q > fdf:
		seLogH = 0.5 * (math.Log(q) - math.Log(fdf)) / (math.Sqrt(2*q) - math.Sqrt(2*fdf-1))
	case df > 2:
		d := fdf - 1
		seLogH = math.Sqrt(1 / (2 * d) * (1 - 1/(3*d*d)))
	default:
		return h, h, h
	}

	z := distuv.UnitNormal.Quantile(1 - (1-level)/2)
	logH := math.Log(math.Max(h, 1e-300))
	lower = math.Max(math.Exp(logH-z*seLogH), 1)
	upper = math.Max(math.Exp(logH+z*seLogH), 1)
	return h, lower, upper
}

// tau2CI computes a Q-profile confidence interval for the between-study
// variance: the generalized Q statistic is monotone decreasing in tau^2, so
// each bound is the root of genQ(tau2) = chi-squared quantile.
func tau2CI(effects, ses []float64, level float64) (lower, upper float64) {
	k := len(effects)
	df := k - 1
	if df <= 0 {
		return 0, 0
	}

	genQ := func(t2 float64) float64 {
		var sumW, sumWE float64
		for i := range effects {
			w := 1 / (ses[i]*ses[i] + t2)
			sumW += w
			sumWE += w * effects[i]
		}
		center := sumWE / sumW
		var q float64
		for i := range effects {
			w := 1 / (ses[i]*ses[i] + t2)
			d := effects[i] - center
			q += w * d * d
		}
		return q
	}

	alpha := 1 - level
	chi := distuv.ChiSquared{K: float64(df)}
	qUpperTarget := chi.Quantile(1 - alpha/2) // crossing it bounds tau2 below
	qLowerTarget := chi.Quantile(alpha / 2)   // crossing it bounds tau2 above

	lower = profileRoot(genQ, qUpperTarget, ses)
	upper = profileRoot(genQ, qLowerTarget, ses)
	return lower, upper
}

// profileRoot solves genQ(t2) = target for t2 >= 0 by bisection.
func profileRoot(genQ func(float64) float64, target float64, ses []float64) float64 {
	if genQ(0) <= target {
		return 0
	}

	// Bracket: grow until genQ drops below target
	hi := 1.0
	for _, se := range ses {
		if v := se * se * 10; v > hi {
			hi = v
		}
	}
	for i := 0; i < 60 && genQ(hi) > target; i++ {
		hi *= 2
	}

	lo := 0.0
	for i := 0; i < 100; i++ {
		mid := (lo + hi) / 2
		if genQ(mid) > target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
