package ports

import (
	"context"

	"gometa/domain/study"
)

// StudyReaderPort loads a study set from an external table (CSV, XLSX).
type StudyReaderPort interface {
	Read(ctx context.Context, path string) (*study.Set, error)
}
