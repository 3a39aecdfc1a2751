package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"gometa/domain/core"
	"gometa/domain/meta"
	"gometa/ports"
)

// AnalysisRepository archives trim-and-fill results in PostgreSQL. The full
// result is stored as JSONB next to the scalar columns the listing needs, so
// an archived analysis reloads exactly as it was computed.
type AnalysisRepository struct {
	db *sqlx.DB
}

var _ ports.ArchivePort = (*AnalysisRepository)(nil)

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// SaveAnalysis stores a result, replacing any earlier row with the same ID.
func (r *AnalysisRepository) SaveAnalysis(ctx context.Context, result *meta.Result) error {
	if result == nil {
		return fmt.Errorf("cannot archive nil analysis")
	}

	query := `
		INSERT INTO analyses (
			id, set_id, set_fingerprint, label, side, estimator,
			k, k0, iterations, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			k0 = EXCLUDED.k0,
			iterations = EXCLUDED.iterations,
			result = EXCLUDED.result`

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		result.ID.String(),
		result.SetID.String(),
		result.Fingerprint.String(),
		result.Label,
		string(result.Side),
		result.Estimator,
		result.K,
		result.K0,
		result.Iterations,
		resultJSON,
		result.CreatedAt.Time(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	return nil
}

// GetAnalysis loads an archived result by ID, or (nil, nil) when absent.
func (r *AnalysisRepository) GetAnalysis(ctx context.Context, id core.AnalysisID) (*meta.Result, error) {
	query := `
		SELECT result
		FROM analyses
		WHERE id = $1`

	var resultJSON []byte
	err := r.db.QueryRowContext(ctx, query, id.String()).Scan(&resultJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not archived
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	var result meta.Result
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}

	return &result, nil
}

// ListAnalyses returns archive listing rows, newest first. A non-positive
// limit returns every row.
func (r *AnalysisRepository) ListAnalyses(ctx context.Context, limit int) ([]meta.ResultSummary, error) {
	query := `
		SELECT id, label, k, k0, side, created_at
		FROM analyses
		ORDER BY created_at DESC`

	args := []interface{}{}
	if limit > 0 {
		query += `
		LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	summaries := []meta.ResultSummary{}
	for rows.Next() {
		var (
			id        string
			label     string
			k         int
			k0        int
			side      string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &label, &k, &k0, &side, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		summaries = append(summaries, meta.ResultSummary{
			ID:        core.AnalysisID(id),
			Label:     label,
			K:         k,
			K0:        k0,
			Side:      meta.Side(side),
			CreatedAt: core.NewTimestamp(createdAt),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis rows: %w", err)
	}

	return summaries, nil
}

// CountAnalyses returns the number of archived analyses.
func (r *AnalysisRepository) CountAnalyses(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM analyses`

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	return count, nil
}
