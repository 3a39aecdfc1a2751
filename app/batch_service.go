package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/domain/study"
	"gometa/internal"
)

// BatchService runs trim-and-fill over many study sets with bounded concurrency
type BatchService struct {
	analysis *AnalysisService
	sem      *semaphore.Weighted
	log      *internal.Logger
}

// BatchRequest carries the study sets and the options shared by every analysis
type BatchRequest struct {
	Sets []*study.Set

	// Options applies to every set; its Set field is ignored.
	Options AnalysisRequest
}

// BatchFailure records one set that could not be analyzed
type BatchFailure struct {
	Index int    `json:"index"`
	Label string `json:"label,omitempty"`
	Error string `json:"error"`
}

// BatchOutcome aggregates per-set results and failures in input order
type BatchOutcome struct {
	Results   []*meta.Result `json:"results"`
	Failures  []BatchFailure `json:"failures,omitempty"`
	RuntimeMs int64          `json:"runtime_ms"`
}

// NewBatchService creates a batch service allowing maxConcurrent parallel analyses
func NewBatchService(analysis *AnalysisService, maxConcurrent int) *BatchService {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &BatchService{
		analysis: analysis,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		log:      internal.DefaultLogger.WithComponent("batch"),
	}
}

// Run analyzes every set in the request. A failing set becomes a BatchFailure
// entry; it never aborts the other sets. Results keep input order.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*BatchOutcome, error) {
	if len(req.Sets) == 0 {
		return nil, fmt.Errorf("%w: batch contains no study sets", core.ErrInvalidInput)
	}

	startTime := time.Now()

	// Each goroutine writes only its own slot, so no mutex is needed.
	results := make([]*meta.Result, len(req.Sets))
	failures := make([]*BatchFailure, len(req.Sets))

	var wg sync.WaitGroup
	for i, set := range req.Sets {
		wg.Add(1)
		go func(index int, set *study.Set) {
			defer wg.Done()

			if err := s.sem.Acquire(ctx, 1); err != nil {
				failures[index] = &BatchFailure{
					Index: index,
					Label: setLabel(set),
					Error: fmt.Sprintf("waiting for analysis slot: %v", err),
				}
				return
			}
			defer s.sem.Release(1)

			entry := req.Options
			entry.Set = set
			result, err := s.analysis.Run(ctx, entry)
			if err != nil {
				s.log.Warn("batch entry %d (%s) failed: %v", index, setLabel(set), err)
				failures[index] = &BatchFailure{
					Index: index,
					Label: setLabel(set),
					Error: err.Error(),
				}
				return
			}
			results[index] = result
		}(i, set)
	}
	wg.Wait()

	outcome := &BatchOutcome{
		Results: make([]*meta.Result, 0, len(req.Sets)),
	}
	for i := range req.Sets {
		if failures[i] != nil {
			outcome.Failures = append(outcome.Failures, *failures[i])
			continue
		}
		if results[i] != nil {
			outcome.Results = append(outcome.Results, results[i])
		}
	}
	outcome.RuntimeMs = time.Since(startTime).Milliseconds()

	s.log.Info("batch finished: %d analyzed, %d failed in %dms",
		len(outcome.Results), len(outcome.Failures), outcome.RuntimeMs)

	return outcome, nil
}

func setLabel(set *study.Set) string {
	if set == nil {
		return ""
	}
	return set.Label
}
