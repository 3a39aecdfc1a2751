package ports

import (
	"context"

	"gometa/domain/core"
	"gometa/domain/meta"
)

// ArchivePort persists completed analyses for later retrieval.
type ArchivePort interface {
	SaveAnalysis(ctx context.Context, result *meta.Result) error

	// GetAnalysis returns (nil, nil) when no analysis with the ID exists.
	GetAnalysis(ctx context.Context, id core.AnalysisID) (*meta.Result, error)

	ListAnalyses(ctx context.Context, limit int) ([]meta.ResultSummary, error)
}
