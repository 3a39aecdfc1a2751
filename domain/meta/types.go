package meta

import (
	"fmt"
	"strings"

	"gometa/domain/core"
)

// Side identifies the funnel side on which studies are suspected missing.
type Side string

const (
	// SideAuto lets the asymmetry detector choose.
	SideAuto  Side = ""
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide parses a user-supplied side string.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return SideAuto, nil
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	default:
		return SideAuto, fmt.Errorf("%w: %q", core.ErrBadSide, s)
	}
}

// Names of the supported asymmetry tests.
const (
	BiasEgger = "egger"
	BiasBegg  = "begg"
)

// ParseBiasMethod parses an asymmetry test name; empty selects Egger.
func ParseBiasMethod(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", BiasEgger:
		return BiasEgger, nil
	case BiasBegg:
		return BiasBegg, nil
	default:
		return "", fmt.Errorf("%w: unknown bias test %q", core.ErrInvalidInput, s)
	}
}

// Model selects which pooled estimate centers the trim iteration.
type Model string

const (
	ModelFixed  Model = "fixed"
	ModelRandom Model = "random"
)

// ParseModel parses a center-model name; empty selects the fixed effect.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModelFixed):
		return ModelFixed, nil
	case string(ModelRandom):
		return ModelRandom, nil
	default:
		return "", fmt.Errorf("%w: unknown center model %q", core.ErrInvalidInput, s)
	}
}

// Pooled is a single-model pooled estimate with its confidence interval.
type Pooled struct {
	Effect float64 `json:"effect"`
	SE     float64 `json:"se"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Stat   float64 `json:"stat"` // z, or t under Hartung-Knapp
	P      float64 `json:"p"`
	Model  Model   `json:"model"`
}

// PredictionInterval bounds the effect expected in a new study.
type PredictionInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Heterogeneity summarizes between-study variability.
type Heterogeneity struct {
	Q  float64 `json:"q"`
	DF int     `json:"df"`
	P  float64 `json:"p"`

	Tau2      float64 `json:"tau2"`
	Tau2Lower float64 `json:"tau2_lower"`
	Tau2Upper float64 `json:"tau2_upper"`
	Tau       float64 `json:"tau"`

	H      float64 `json:"h"`
	HLower float64 `json:"h_lower"`
	HUpper float64 `json:"h_upper"`

	I2      float64 `json:"i2"`
	I2Lower float64 `json:"i2_lower"`
	I2Upper float64 `json:"i2_upper"`

	// Rb is the mean proportion of each study's variance due to heterogeneity.
	Rb      float64 `json:"rb"`
	RbLower float64 `json:"rb_lower"`
	RbUpper float64 `json:"rb_upper"`
}

// Pooling is the complete output of the pooling engine for one study set.
type Pooling struct {
	K            int                 `json:"k"`
	Fixed        Pooled              `json:"fixed"`
	Random       Pooled              `json:"random"`
	Het          Heterogeneity       `json:"heterogeneity"`
	Predict      *PredictionInterval `json:"prediction,omitempty"`
	Level        float64             `json:"level"`
	HartungKnapp bool                `json:"hartung_knapp,omitempty"`
}

// ByModel returns the pooled estimate for the given model.
func (p *Pooling) ByModel(m Model) Pooled {
	if m == ModelRandom {
		return p.Random
	}
	return p.Fixed
}

// BiasTest is the outcome of a small-study asymmetry test.
type BiasTest struct {
	Method    string  `json:"method"` // "egger" | "begg"
	Statistic float64 `json:"statistic"`
	DF        int     `json:"df,omitempty"`
	P         float64 `json:"p"`

	// Bias is the Egger intercept or the Begg rank correlation; its sign
	// orients trim-and-fill.
	Bias   float64 `json:"bias"`
	SEBias float64 `json:"se_bias,omitempty"`
}
