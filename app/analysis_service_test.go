package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"gometa/adapters/bias"
	"gometa/adapters/pooling"
	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/domain/study"
	"gometa/trimfill"
)

// biasedSet is a funnel with six precise studies near 0.5 and three imprecise
// ones pulled right, the signature of suppressed small negative studies.
func biasedSet(label string) *study.Set {
	set := study.NewSet(label, []study.Study{
		{Effect: 0.45, SE: 0.05},
		{Effect: 0.50, SE: 0.05},
		{Effect: 0.55, SE: 0.05},
		{Effect: 0.60, SE: 0.05},
		{Effect: 0.65, SE: 0.05},
		{Effect: 0.70, SE: 0.05},
		{Effect: 0.90, SE: 0.25},
		{Effect: 1.10, SE: 0.30},
		{Effect: 1.30, SE: 0.35},
	})
	set.Measure = "SMD"
	return set
}

func newAnalyzer() *trimfill.Analyzer {
	return trimfill.NewAnalyzer(pooling.NewEngine(), bias.NewEgger(), bias.NewBegg())
}

// recordingArchive captures saved analyses in memory
type recordingArchive struct {
	mu    sync.Mutex
	saved []*meta.Result
}

func (r *recordingArchive) SaveAnalysis(ctx context.Context, result *meta.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, result)
	return nil
}

func (r *recordingArchive) GetAnalysis(ctx context.Context, id core.AnalysisID) (*meta.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.saved {
		if res.ID == id {
			return res, nil
		}
	}
	return nil, nil
}

func (r *recordingArchive) ListAnalyses(ctx context.Context, limit int) ([]meta.ResultSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	summaries := make([]meta.ResultSummary, 0, len(r.saved))
	for i := len(r.saved) - 1; i >= 0; i-- {
		res := r.saved[i]
		summaries = append(summaries, meta.ResultSummary{ID: res.ID, Label: res.Label, K: res.K, K0: res.K0})
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return summaries, nil
}

// failingArchive refuses every save
type failingArchive struct{}

func (f *failingArchive) SaveAnalysis(ctx context.Context, result *meta.Result) error {
	return fmt.Errorf("archive unavailable")
}

func (f *failingArchive) GetAnalysis(ctx context.Context, id core.AnalysisID) (*meta.Result, error) {
	return nil, fmt.Errorf("archive unavailable")
}

func (f *failingArchive) ListAnalyses(ctx context.Context, limit int) ([]meta.ResultSummary, error) {
	return nil, fmt.Errorf("archive unavailable")
}

func TestAnalysisService_RunArchivesResult(t *testing.T) {
	archive := &recordingArchive{}
	svc := NewAnalysisService(newAnalyzer(), archive)

	result, err := svc.Run(context.Background(), AnalysisRequest{
		Set:       biasedSet("magnesium trials"),
		Estimator: "L0",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.K0 != 2 {
		t.Errorf("Expected 2 imputed studies, got %d", result.K0)
	}

	if len(archive.saved) != 1 {
		t.Fatalf("Expected 1 archived analysis, got %d", len(archive.saved))
	}
	if archive.saved[0].ID != result.ID {
		t.Errorf("Archived ID %s does not match result ID %s", archive.saved[0].ID, result.ID)
	}

	loaded, err := svc.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if loaded.K != result.K || loaded.K0 != result.K0 {
		t.Errorf("Loaded analysis differs: K=%d K0=%d vs K=%d K0=%d",
			loaded.K, loaded.K0, result.K, result.K0)
	}
}

func TestAnalysisService_RunWithoutArchive(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)

	result, err := svc.Run(context.Background(), AnalysisRequest{Set: biasedSet("no archive")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Empty() {
		t.Error("Expected an adjusted estimate")
	}
}

func TestAnalysisService_RunRejectsUnknownEstimator(t *testing.T) {
	archive := &recordingArchive{}
	svc := NewAnalysisService(newAnalyzer(), archive)

	_, err := svc.Run(context.Background(), AnalysisRequest{
		Set:       biasedSet("bad estimator"),
		Estimator: "bogus",
	})
	if !errors.Is(err, core.ErrBadEstimator) {
		t.Errorf("Expected ErrBadEstimator, got %v", err)
	}
	if len(archive.saved) != 0 {
		t.Errorf("Nothing should be archived on failure, got %d entries", len(archive.saved))
	}
}

func TestAnalysisService_RunRejectsUnknownSide(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)

	_, err := svc.Run(context.Background(), AnalysisRequest{
		Set:  biasedSet("bad side"),
		Side: "upwards",
	})
	if !errors.Is(err, core.ErrBadSide) {
		t.Errorf("Expected ErrBadSide, got %v", err)
	}
}

func TestAnalysisService_RunRejectsUnknownCenterModel(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)

	_, err := svc.Run(context.Background(), AnalysisRequest{
		Set:         biasedSet("bad center"),
		CenterModel: "median",
	})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestAnalysisService_ArchiveFailureSurfaces(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), &failingArchive{})

	_, err := svc.Run(context.Background(), AnalysisRequest{Set: biasedSet("flaky archive")})
	if err == nil {
		t.Fatal("Expected an error when archiving fails")
	}
	if !strings.Contains(err.Error(), "archive") {
		t.Errorf("Error should mention archiving, got: %v", err)
	}
}

func TestAnalysisService_GetMissingIsNotFound(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), &recordingArchive{})

	_, err := svc.Get(context.Background(), core.AnalysisID("no-such-analysis"))
	if !core.IsNotFoundError(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestAnalysisService_GetWithoutArchiveIsNotFound(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)

	_, err := svc.Get(context.Background(), core.AnalysisID("anything"))
	if !core.IsNotFoundError(err) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestAnalysisService_ListWithoutArchiveIsEmpty(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)

	summaries, err := svc.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("Expected no summaries, got %d", len(summaries))
	}
}

func TestAnalysisService_DefaultsFillUnsetFields(t *testing.T) {
	svc := NewAnalysisService(newAnalyzer(), nil)
	svc.SetDefaults(AnalysisRequest{Estimator: "R0", Level: 0.90})

	result, err := svc.Run(context.Background(), AnalysisRequest{Set: biasedSet("defaults")})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Estimator != "R0" {
		t.Errorf("Expected default estimator R0, got %s", result.Estimator)
	}
	if result.Original.Level != 0.90 {
		t.Errorf("Expected default level 0.90, got %v", result.Original.Level)
	}

	result, err = svc.Run(context.Background(), AnalysisRequest{
		Set:       biasedSet("explicit"),
		Estimator: "L0",
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Estimator != "L0" {
		t.Errorf("Explicit estimator should win over the default, got %s", result.Estimator)
	}
}
