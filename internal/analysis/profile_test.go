package analysis

import (
	"errors"
	"math"
	"testing"

	"gometa/domain/core"
	"gometa/domain/study"
)

func evenSet() *study.Set {
	return study.NewSet("even", []study.Study{
		{Effect: 1, SE: 0.1},
		{Effect: 2, SE: 0.2},
		{Effect: 3, SE: 0.3},
		{Effect: 4, SE: 0.4},
		{Effect: 5, SE: 0.5},
	})
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDescribe_SummaryStats(t *testing.T) {
	profile, err := Describe(evenSet())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if profile.Studies != 5 || profile.Estimable != 5 {
		t.Errorf("Expected 5 studies all estimable, got %d/%d", profile.Estimable, profile.Studies)
	}
	if !almostEqual(profile.Effect.Mean, 3) {
		t.Errorf("Expected mean 3, got %v", profile.Effect.Mean)
	}
	if !almostEqual(profile.Effect.Median, 3) {
		t.Errorf("Expected median 3, got %v", profile.Effect.Median)
	}
	if !almostEqual(profile.Effect.Min, 1) || !almostEqual(profile.Effect.Max, 5) {
		t.Errorf("Expected range [1,5], got [%v,%v]", profile.Effect.Min, profile.Effect.Max)
	}
	if !almostEqual(profile.Effect.StdDev, math.Sqrt(2)) {
		t.Errorf("Expected population std dev sqrt(2), got %v", profile.Effect.StdDev)
	}
	if !almostEqual(profile.Effect.Skewness, 0) {
		t.Errorf("Symmetric data should have zero skewness, got %v", profile.Effect.Skewness)
	}
	if profile.Effect.Outliers != 0 {
		t.Errorf("Expected no outliers, got %d", profile.Effect.Outliers)
	}
}

func TestDescribe_PrecisionStats(t *testing.T) {
	profile, err := Describe(evenSet())
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if !almostEqual(profile.SE.Min, 0.1) || !almostEqual(profile.SE.Max, 0.5) {
		t.Errorf("Expected SE range [0.1,0.5], got [%v,%v]", profile.SE.Min, profile.SE.Max)
	}
	if !almostEqual(profile.SE.Median, 0.3) {
		t.Errorf("Expected SE median 0.3, got %v", profile.SE.Median)
	}
	if !almostEqual(profile.SE.Ratio, 5) {
		t.Errorf("Expected precision ratio 5, got %v", profile.SE.Ratio)
	}
}

func TestDescribe_FlagsOutliers(t *testing.T) {
	set := study.NewSet("outlier", []study.Study{
		{Effect: 0.0, SE: 0.1},
		{Effect: 0.1, SE: 0.1},
		{Effect: 0.2, SE: 0.1},
		{Effect: 0.3, SE: 0.1},
		{Effect: 5.0, SE: 0.1},
	})

	profile, err := Describe(set)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if profile.Effect.Outliers != 1 {
		t.Errorf("Expected 1 outlier past the IQR fence, got %d", profile.Effect.Outliers)
	}
	if profile.Effect.Skewness <= 0 {
		t.Errorf("Right-tailed data should have positive skewness, got %v", profile.Effect.Skewness)
	}
}

func TestDescribe_SkipsNonEstimable(t *testing.T) {
	set := study.NewSet("partial", []study.Study{
		{Effect: 0.5, SE: 0.1},
		{Effect: math.NaN(), SE: 0.1},
		{Effect: 0.7, SE: 0},
		{Effect: 0.9, SE: 0.2},
	})

	profile, err := Describe(set)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}

	if profile.Studies != 4 {
		t.Errorf("Expected 4 studies counted, got %d", profile.Studies)
	}
	if profile.Estimable != 2 {
		t.Errorf("Expected 2 estimable studies, got %d", profile.Estimable)
	}
	if !almostEqual(profile.Effect.Mean, 0.7) {
		t.Errorf("Mean should use estimable studies only, got %v", profile.Effect.Mean)
	}
}

func TestDescribe_RejectsEmptyInput(t *testing.T) {
	if _, err := Describe(nil); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected invalid input error for nil set, got %v", err)
	}

	empty := &study.Set{}
	if _, err := Describe(empty); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected invalid input error for empty set, got %v", err)
	}

	unusable := study.NewSet("bad", []study.Study{
		{Effect: math.NaN(), SE: 0.1},
		{Effect: 0.5, SE: 0},
	})
	if _, err := Describe(unusable); !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Expected insufficient data error, got %v", err)
	}
}
