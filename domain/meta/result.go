package meta

import (
	"gometa/domain/core"
	"gometa/domain/study"
)

// Result is the outcome of a trim-and-fill analysis: the imputation itself
// plus pooled estimates before and after correction.
type Result struct {
	ID    core.AnalysisID `json:"id"`
	SetID core.StudySetID `json:"set_id"`
	Label string          `json:"label,omitempty"`

	// Fingerprint identifies the input set contents, so identical sets can
	// be matched across re-runs regardless of labels or ordering.
	Fingerprint core.SetFingerprint `json:"fingerprint,omitempty"`

	Side      Side   `json:"side"`
	Estimator string `json:"estimator"`

	K          int `json:"k"`  // observed studies
	K0         int `json:"k0"` // imputed studies
	Iterations int `json:"iterations"`

	// Filled holds observed studies in original order followed by imputed
	// ones. Nil when the analysis could not run (k too small).
	Filled *study.Set `json:"filled,omitempty"`

	Original *Pooling `json:"original,omitempty"` // before correction
	Adjusted *Pooling `json:"adjusted,omitempty"` // with filled studies

	// Bias is the asymmetry test that chose the side; nil when forced.
	Bias *BiasTest `json:"bias,omitempty"`

	Warnings  []string       `json:"warnings,omitempty"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// Empty reports whether the analysis produced no adjusted estimate
// (too few studies).
func (r *Result) Empty() bool {
	return r.Adjusted == nil
}

// AddWarning appends a warning message to the result.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// ResultSummary is the archive listing row for an analysis.
type ResultSummary struct {
	ID        core.AnalysisID `json:"id"`
	Label     string          `json:"label,omitempty"`
	K         int             `json:"k"`
	K0        int             `json:"k0"`
	Side      Side            `json:"side"`
	CreatedAt core.Timestamp  `json:"created_at"`
}
