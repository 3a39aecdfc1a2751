package testkit

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"github.com/xuri/excelize/v2"

	"gometa/domain/study"
)

// FunnelConfig configures the synthetic funnel-plot generator
type FunnelConfig struct {
	Studies    int     `json:"studies"`
	Suppressed int     `json:"suppressed"`
	Effect     float64 `json:"effect"`
	Tau        float64 `json:"tau"`
	MinSE      float64 `json:"min_se"`
	MaxSE      float64 `json:"max_se"`
	Seed       int64   `json:"seed"`
	Measure    string  `json:"measure"`
}

// DefaultFunnelConfig returns sensible defaults for funnel data generation
func DefaultFunnelConfig() FunnelConfig {
	return FunnelConfig{
		Studies:    25,
		Suppressed: 5,
		Effect:     0.5,
		Tau:        0.1,
		MinSE:      0.05,
		MaxSE:      0.4,
		Seed:       42,
		Measure:    "SMD",
	}
}

// FunnelDataset holds a generated study collection before and after
// suppression, plus formatted rows for file output.
//
// Columns:
// - label
// - effect
// - se
type FunnelDataset struct {
	Headers []string
	Rows    [][]string // observed studies, already formatted/rounded

	// Observed is what a biased literature search would find: the complete
	// set minus the suppressed left tail.
	Observed *study.Set

	// Complete and Suppressed preserve the ground truth for validation
	Complete   *study.Set
	Suppressed []study.Study
}

// FunnelGenerator generates funnel-plot study sets with a known number of
// suppressed studies
type FunnelGenerator struct {
	config FunnelConfig
	rng    *rand.Rand
}

// NewFunnelGenerator creates a new funnel generator
func NewFunnelGenerator(config FunnelConfig) *FunnelGenerator {
	return &FunnelGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate draws a random-effects funnel and censors its left tail.
//
// Each study gets a standard error uniform on [MinSE, MaxSE], a true effect
// Effect + Tau*N(0,1), and an observed effect with sampling noise scaled by
// its standard error. The Suppressed studies with the smallest observed
// effects are then removed, which is the classic publication-bias mechanism.
func (g *FunnelGenerator) Generate() (*FunnelDataset, error) {
	cfg := g.config
	if cfg.Studies <= 0 {
		return nil, fmt.Errorf("studies must be > 0")
	}
	if cfg.Suppressed < 0 || cfg.Suppressed >= cfg.Studies {
		return nil, fmt.Errorf("suppressed count must be in [0, studies)")
	}
	if cfg.MinSE <= 0 || cfg.MaxSE < cfg.MinSE {
		return nil, fmt.Errorf("standard error range must satisfy 0 < min <= max")
	}

	studies := make([]study.Study, cfg.Studies)
	for i := range studies {
		se := cfg.MinSE + g.rng.Float64()*(cfg.MaxSE-cfg.MinSE)
		theta := cfg.Effect + cfg.Tau*g.rng.NormFloat64()
		studies[i] = study.Study{
			Label:  fmt.Sprintf("Study %02d", i+1),
			Effect: theta + se*g.rng.NormFloat64(),
			SE:     se,
		}
	}

	complete := study.NewSet("synthetic funnel", studies)
	complete.Measure = cfg.Measure

	// Censor the left tail: drop the Suppressed smallest observed effects,
	// keeping the survivors in generation order.
	byEffect := make([]int, cfg.Studies)
	for i := range byEffect {
		byEffect[i] = i
	}
	sort.SliceStable(byEffect, func(a, b int) bool {
		return studies[byEffect[a]].Effect < studies[byEffect[b]].Effect
	})

	dropped := make(map[int]bool, cfg.Suppressed)
	suppressed := make([]study.Study, 0, cfg.Suppressed)
	for _, idx := range byEffect[:cfg.Suppressed] {
		dropped[idx] = true
	}
	survivors := make([]study.Study, 0, cfg.Studies-cfg.Suppressed)
	for i, st := range studies {
		if dropped[i] {
			suppressed = append(suppressed, st)
			continue
		}
		survivors = append(survivors, st)
	}

	observed := study.NewSet("synthetic funnel", survivors)
	observed.Measure = cfg.Measure

	headers := []string{"label", "effect", "se"}
	rows := make([][]string, 0, len(survivors))
	for _, st := range survivors {
		rows = append(rows, []string{
			st.Label,
			fToStr(st.Effect, 6),
			fToStr(st.SE, 6),
		})
	}

	return &FunnelDataset{
		Headers:    headers,
		Rows:       rows,
		Observed:   observed,
		Complete:   complete,
		Suppressed: suppressed,
	}, nil
}

// WriteCSV writes the observed studies to a CSV file
func WriteCSV(path string, ds *FunnelDataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(ds.Headers); err != nil {
		return err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteXLSX writes the observed studies to an Excel workbook
func WriteXLSX(path string, ds *FunnelDataset) error {
	f := excelize.NewFile()

	// Ensure Sheet1 exists and is active.
	sheet := "Sheet1"
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		idx, err := f.NewSheet(sheet)
		if err != nil {
			return err
		}
		f.SetActiveSheet(idx)
	}

	// Header row
	for i, h := range ds.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	// Data rows
	for r := 0; r < len(ds.Rows); r++ {
		rowIdx := r + 2
		for c, v := range ds.Rows[r] {
			cell, _ := excelize.CoordinatesToCellName(c+1, rowIdx)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return err
	}
	return nil
}

func fToStr(x float64, decimals int) string {
	p := math.Pow10(decimals)
	x = math.Round(x*p) / p
	return strconv.FormatFloat(x, 'f', decimals, 64)
}
