package testkit

import (
	"context"
	"fmt"
	"sync"

	"gometa/adapters/bias"
	"gometa/adapters/pooling"
	"gometa/app"
	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/domain/study"
	"gometa/ports"
	"gometa/trimfill"
)

// TestKit provides wired-up components and in-memory fakes
type TestKit struct {
	archive *MemoryArchive // Shared archive instance
}

// NewTestKit creates a new test kit instance
func NewTestKit() (*TestKit, error) {
	return &TestKit{archive: NewMemoryArchive()}, nil
}

// Analyzer returns a trim-and-fill analyzer wired to the real pooling and
// asymmetry adapters
func (t *TestKit) Analyzer() *trimfill.Analyzer {
	return trimfill.NewAnalyzer(pooling.NewEngine(), bias.NewEgger(), bias.NewBegg())
}

// ArchiveAdapter returns an archive adapter
func (t *TestKit) ArchiveAdapter() ports.ArchivePort {
	// Share the same storage so services and assertions see the same analyses
	return t.archive
}

// AnalysisService returns an analysis service backed by the in-memory archive
func (t *TestKit) AnalysisService() *app.AnalysisService {
	return app.NewAnalysisService(t.Analyzer(), t.ArchiveAdapter())
}

// SampleSet generates a small deterministic study set with suppressed
// left-tail studies, for handlers and services that need plausible input.
func (t *TestKit) SampleSet() (*study.Set, error) {
	cfg := DefaultFunnelConfig()
	cfg.Studies = 12
	cfg.Suppressed = 3
	ds, err := NewFunnelGenerator(cfg).Generate()
	if err != nil {
		return nil, err
	}
	return ds.Observed, nil
}

// MemoryArchive implements ArchivePort with in-memory storage
type MemoryArchive struct {
	results map[core.AnalysisID]*meta.Result
	order   []core.AnalysisID
	mu      sync.RWMutex
}

var _ ports.ArchivePort = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		results: make(map[core.AnalysisID]*meta.Result),
	}
}

func (m *MemoryArchive) SaveAnalysis(ctx context.Context, result *meta.Result) error {
	if result == nil {
		return fmt.Errorf("cannot archive nil result")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.results[result.ID]; !exists {
		m.order = append(m.order, result.ID)
	}
	m.results[result.ID] = result
	return nil
}

func (m *MemoryArchive) GetAnalysis(ctx context.Context, id core.AnalysisID) (*meta.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, exists := m.results[id]
	if !exists {
		return nil, nil
	}
	return result, nil
}

func (m *MemoryArchive) ListAnalyses(ctx context.Context, limit int) ([]meta.ResultSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]meta.ResultSummary, 0, len(m.order))
	// Newest first, matching the archive database ordering
	for i := len(m.order) - 1; i >= 0; i-- {
		r := m.results[m.order[i]]
		summaries = append(summaries, meta.ResultSummary{
			ID:        r.ID,
			Label:     r.Label,
			K:         r.K,
			K0:        r.K0,
			Side:      r.Side,
			CreatedAt: r.CreatedAt,
		})
		if limit > 0 && len(summaries) >= limit {
			break
		}
	}
	return summaries, nil
}
