package bias

import (
	"context"
	"errors"
	"math"
	"testing"

	"gometa/domain/core"
)

// Fixture built backwards from the regression scale: precisions x =
// {2,4,6,8} and standardized effects y = {1,2,2,3} give an OLS intercept
// of 0.5 with standard error sqrt(0.15) on 2 degrees of freedom.
var (
	eggerSEs     = []float64{1.0 / 2, 1.0 / 4, 1.0 / 6, 1.0 / 8}
	eggerEffects = []float64{1 * (1.0 / 2), 2 * (1.0 / 4), 2 * (1.0 / 6), 3 * (1.0 / 8)}
)

// TestEgger_KnownRegression tests intercept, SE and p against hand-computed OLS
func TestEgger_KnownRegression(t *testing.T) {
	result, err := NewEgger().Test(context.Background(), eggerEffects, eggerSEs)
	if err != nil {
		t.Fatalf("Test failed: %v", err)
	}

	if math.Abs(result.Bias-0.5) > 1e-9 {
		t.Errorf("Bias = %v, want 0.5", result.Bias)
	}
	wantSE := math.Sqrt(0.15)
	if math.Abs(result.SEBias-wantSE) > 1e-9 {
		t.Errorf("SEBias = %v, want %v", result.SEBias, wantSE)
	}
	if result.DF != 2 {
		t.Errorf("DF = %d, want 2", result.DF)
	}
	wantT := 0.5 / wantSE
	if math.Abs(result.Statistic-wantT) > 1e-9 {
		t.Errorf("Statistic = %v, want %v", result.Statistic, wantT)
	}
	if math.Abs(result.P-0.3258) > 1e-3 {
		t.Errorf("P = %v, want ~0.3258", result.P)
	}
	if result.Method != "egger" {
		t.Errorf("Method = %q, want egger", result.Method)
	}
}

// TestEgger_PositiveBiasOnSuppressedFunnel tests direction on a biased funnel
func TestEgger_PositiveBiasOnSuppressedFunnel(t *testing.T) {
	// Precise cluster plus small studies with inflated effects
	effects := []float64{0.45, 0.50, 0.55, 0.60, 0.65, 0.70, 0.90, 1.10, 1.30}
	ses := []float64{0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.25, 0.30, 0.35}

	result, err := NewEgger().Test(context.Background(), effects, ses)
	if err != nil {
		t.Fatalf("Test failed: %v", err)
	}

	if result.Bias <= 1 {
		t.Errorf("Bias = %v, want clearly positive for small-study inflation", result.Bias)
	}
	if result.Statistic <= 0 {
		t.Errorf("Statistic = %v, want positive", result.Statistic)
	}
	if result.P < 0 || result.P > 1 {
		t.Errorf("P = %v outside [0,1]", result.P)
	}
}

// TestEgger_TooFewStudies tests the minimum study count
func TestEgger_TooFewStudies(t *testing.T) {
	_, err := NewEgger().Test(context.Background(),
		[]float64{0.1, 0.2}, []float64{0.1, 0.1})
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

// TestEgger_DegenerateWithEqualPrecisions tests the zero-spread rejection
func TestEgger_DegenerateWithEqualPrecisions(t *testing.T) {
	_, err := NewEgger().Test(context.Background(),
		[]float64{0.1, 0.2, 0.3}, []float64{0.1, 0.1, 0.1})
	if !errors.Is(err, core.ErrNotEstimable) {
		t.Errorf("Expected ErrNotEstimable for equal precisions, got %v", err)
	}
}

// TestBegg_PositiveScoreOnSuppressedFunnel tests rank correlation direction
func TestBegg_PositiveScoreOnSuppressedFunnel(t *testing.T) {
	effects := []float64{0.45, 0.50, 0.55, 0.60, 0.65, 0.70, 0.90, 1.10, 1.30}
	ses := []float64{0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.25, 0.30, 0.35}

	result, err := NewBegg().Test(context.Background(), effects, ses)
	if err != nil {
		t.Fatalf("Test failed: %v", err)
	}

	if result.Bias <= 0 {
		t.Errorf("Kendall score = %v, want positive when variance tracks effect", result.Bias)
	}
	if result.P < 0 || result.P > 1 {
		t.Errorf("P = %v outside [0,1]", result.P)
	}
	if result.Method != "begg" {
		t.Errorf("Method = %q, want begg", result.Method)
	}
}

// TestBegg_TooFewStudies tests the minimum study count
func TestBegg_TooFewStudies(t *testing.T) {
	_, err := NewBegg().Test(context.Background(),
		[]float64{0.1, 0.2}, []float64{0.1, 0.2})
	if !errors.Is(err, core.ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData, got %v", err)
	}
}

// TestKendallScore_ConcordantAndDiscordant tests the score on perfect orderings
func TestKendallScore_ConcordantAndDiscordant(t *testing.T) {
	up := []float64{1, 2, 3}
	down := []float64{3, 2, 1}

	s, se := kendallScore(up, up)
	if s != 3 {
		t.Errorf("Concordant score = %v, want 3", s)
	}
	wantSE := math.Sqrt(3.0 * 2 * 11 / 18)
	if math.Abs(se-wantSE) > 1e-9 {
		t.Errorf("se = %v, want %v", se, wantSE)
	}

	s, _ = kendallScore(up, down)
	if s != -3 {
		t.Errorf("Discordant score = %v, want -3", s)
	}
}

// TestKendallScore_TiesReduceVariance tests the tie correction
func TestKendallScore_TiesReduceVariance(t *testing.T) {
	noTies := []float64{1, 2, 3, 4, 5}
	ties := []float64{1, 2, 2, 4, 5}

	_, seFree := kendallScore(noTies, []float64{5, 3, 1, 2, 4})
	_, seTied := kendallScore(ties, []float64{5, 3, 1, 2, 4})

	if seTied >= seFree {
		t.Errorf("Tied se %v not below tie-free se %v", seTied, seFree)
	}
}
