// Package tabular loads study sets from CSV and Excel files. It expects a
// header row naming an effect column and a standard-error column; a label
// column is optional.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gometa/domain/core"
	"gometa/domain/study"
	"gometa/internal"
	apperrors "gometa/internal/errors"
	"gometa/ports"
)

// Column name candidates, checked case-insensitively in order.
var (
	labelColumns  = []string{"label", "study", "studlab", "trial", "name"}
	effectColumns = []string{"effect", "te", "yi", "estimate", "smd", "md"}
	seColumns     = []string{"se", "sete", "sei", "stderr", "std_err", "standard_error"}
)

// Reader handles reading study sets from Excel and CSV files
type Reader struct {
	log *internal.Logger
}

var _ ports.StudyReaderPort = (*Reader)(nil)

// NewReader creates a new tabular study reader
func NewReader() *Reader {
	return &Reader{log: internal.DefaultLogger.WithComponent("tabular")}
}

// Read loads a study set from the file at path, dispatching on the extension
func (r *Reader) Read(ctx context.Context, path string) (*study.Set, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, apperrors.ReadFailed(path, err)
	}

	var rows [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, err = r.readCSVRows(path)
	case ".xlsx", ".xlsm":
		rows, err = r.readExcelRows(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", core.ErrInvalidInput, ext)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", core.ErrInvalidInput)
	}

	return r.parseRows(rows, path)
}

func (r *Reader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.ReadFailed(path, err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, apperrors.ReadFailed(path, err)
	}
	return rows, nil
}

// readExcelRows always reads Sheet1
func (r *Reader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.ReadFailed(path, err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, apperrors.ReadFailed(path, err)
	}
	return rows, nil
}

// parseRows converts raw string rows into a study set. Cells that fail to
// parse leave the study in place but non-estimable, so one bad row never
// blocks the rest of the file.
func (r *Reader) parseRows(rows [][]string, path string) (*study.Set, error) {
	headers := rows[0]

	effectCol := findColumn(headers, effectColumns)
	if effectCol == -1 {
		return nil, fmt.Errorf("%w: no effect column (looked for %s)",
			core.ErrInvalidInput, strings.Join(effectColumns, ", "))
	}
	seCol := findColumn(headers, seColumns)
	if seCol == -1 {
		return nil, fmt.Errorf("%w: no standard-error column (looked for %s)",
			core.ErrInvalidInput, strings.Join(seColumns, ", "))
	}
	labelCol := findColumn(headers, labelColumns)

	base := filepath.Base(path)
	studies := make([]study.Study, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}

		st := study.Study{Label: cellAt(row, labelCol)}

		effect, err := strconv.ParseFloat(cellAt(row, effectCol), 64)
		if err != nil {
			r.log.Warn("%s row %d: unreadable effect %q, keeping study as non-estimable",
				base, i+1, cellAt(row, effectCol))
			effect = math.NaN()
		}
		se, err := strconv.ParseFloat(cellAt(row, seCol), 64)
		if err != nil {
			r.log.Warn("%s row %d: unreadable standard error %q, keeping study as non-estimable",
				base, i+1, cellAt(row, seCol))
			se = math.NaN()
		}

		st.Effect = effect
		st.SE = se
		studies = append(studies, st)
	}

	if len(studies) == 0 {
		return nil, fmt.Errorf("%w: no data rows in %s", core.ErrInvalidInput, base)
	}

	set := study.NewSet(strings.TrimSuffix(base, filepath.Ext(base)), studies)
	r.log.Info("loaded %d studies from %s (%d estimable)", set.Len(), base, len(set.Estimable()))
	return set, nil
}

// findColumn returns the index of the first header matching any candidate,
// or -1 when none does
func findColumn(headers []string, candidates []string) int {
	for _, want := range candidates {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
