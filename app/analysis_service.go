package app

import (
	"context"
	"fmt"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/domain/study"
	"gometa/ports"
	"gometa/trimfill"
)

// AnalysisService orchestrates trim-and-fill analyses and their archiving
type AnalysisService struct {
	analyzer *trimfill.Analyzer
	archive  ports.ArchivePort // nil disables archiving
	defaults AnalysisRequest
}

// AnalysisRequest defines inputs for one trim-and-fill analysis
type AnalysisRequest struct {
	Set           *study.Set
	Estimator     string
	Side          string
	BiasMethod    string
	CenterModel   string
	Level         float64
	HartungKnapp  bool
	Prediction    bool
	MaxIterations int
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(analyzer *trimfill.Analyzer, archive ports.ArchivePort) *AnalysisService {
	return &AnalysisService{
		analyzer: analyzer,
		archive:  archive,
	}
}

// SetDefaults installs deployment-wide analysis options applied wherever a
// request leaves a field unset.
func (s *AnalysisService) SetDefaults(defaults AnalysisRequest) {
	s.defaults = defaults
}

// Run executes a trim-and-fill analysis and archives the result when an
// archive is wired
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*meta.Result, error) {
	opts, err := s.withDefaults(req).options()
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.Run(ctx, req.Set, opts)
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if err := s.archive.SaveAnalysis(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to archive analysis: %w", err)
		}
	}

	return result, nil
}

// Get loads an archived analysis by ID
func (s *AnalysisService) Get(ctx context.Context, id core.AnalysisID) (*meta.Result, error) {
	if s.archive == nil {
		return nil, core.NewNotFoundError("analysis", id.String())
	}
	result, err := s.archive.GetAnalysis(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}
	if result == nil {
		return nil, core.NewNotFoundError("analysis", id.String())
	}
	return result, nil
}

// List returns recent archived analyses, newest first
func (s *AnalysisService) List(ctx context.Context, limit int) ([]meta.ResultSummary, error) {
	if s.archive == nil {
		return []meta.ResultSummary{}, nil
	}
	summaries, err := s.archive.ListAnalyses(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return summaries, nil
}

// withDefaults fills unset request fields from the service defaults. Boolean
// toggles are only ever switched on by defaults, never back off.
func (s *AnalysisService) withDefaults(req AnalysisRequest) AnalysisRequest {
	if req.Estimator == "" {
		req.Estimator = s.defaults.Estimator
	}
	if req.Side == "" {
		req.Side = s.defaults.Side
	}
	if req.BiasMethod == "" {
		req.BiasMethod = s.defaults.BiasMethod
	}
	if req.CenterModel == "" {
		req.CenterModel = s.defaults.CenterModel
	}
	if req.Level == 0 {
		req.Level = s.defaults.Level
	}
	if req.MaxIterations == 0 {
		req.MaxIterations = s.defaults.MaxIterations
	}
	req.HartungKnapp = req.HartungKnapp || s.defaults.HartungKnapp
	req.Prediction = req.Prediction || s.defaults.Prediction
	return req
}

// options translates the wire-level request into typed analyzer options.
// Unknown estimator or side names fail here, before any computation.
func (r AnalysisRequest) options() (trimfill.Options, error) {
	estimator, err := trimfill.ParseEstimator(r.Estimator)
	if err != nil {
		return trimfill.Options{}, err
	}
	side, err := meta.ParseSide(r.Side)
	if err != nil {
		return trimfill.Options{}, err
	}
	biasMethod, err := meta.ParseBiasMethod(r.BiasMethod)
	if err != nil {
		return trimfill.Options{}, err
	}
	centerModel, err := meta.ParseModel(r.CenterModel)
	if err != nil {
		return trimfill.Options{}, err
	}
	return trimfill.Options{
		Estimator:     estimator,
		Side:          side,
		BiasMethod:    biasMethod,
		CenterModel:   centerModel,
		Level:         r.Level,
		HartungKnapp:  r.HartungKnapp,
		Prediction:    r.Prediction,
		MaxIterations: r.MaxIterations,
	}, nil
}
