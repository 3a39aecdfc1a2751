package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gometa/app"
	"gometa/domain/study"
	"gometa/internal/analysis"
)

// maxUploadSize caps study table uploads at 10MB.
const maxUploadSize = 10 << 20

// studyInput is one study row posted inline.
type studyInput struct {
	Label  string  `json:"label,omitempty"`
	Effect float64 `json:"effect"`
	SE     float64 `json:"se"`
}

// setInput is a study set posted inline.
type setInput struct {
	Label   string       `json:"label,omitempty"`
	Measure string       `json:"measure,omitempty"`
	Studies []studyInput `json:"studies"`
}

func (s setInput) set() *study.Set {
	studies := make([]study.Study, 0, len(s.Studies))
	for _, row := range s.Studies {
		studies = append(studies, study.Study{Label: row.Label, Effect: row.Effect, SE: row.SE})
	}
	set := study.NewSet(s.Label, studies)
	set.Measure = s.Measure
	return set
}

// analyzeOptions are the trim-and-fill tunables shared by single runs,
// uploads, and batches.
type analyzeOptions struct {
	Estimator     string  `json:"estimator,omitempty"`
	Side          string  `json:"side,omitempty"`
	BiasMethod    string  `json:"bias_method,omitempty"`
	CenterModel   string  `json:"center_model,omitempty"`
	Level         float64 `json:"level,omitempty"`
	HartungKnapp  bool    `json:"hartung_knapp,omitempty"`
	Prediction    bool    `json:"prediction,omitempty"`
	MaxIterations int     `json:"max_iterations,omitempty"`
}

func (o analyzeOptions) serviceRequest(set *study.Set) app.AnalysisRequest {
	return app.AnalysisRequest{
		Set:           set,
		Estimator:     o.Estimator,
		Side:          o.Side,
		BiasMethod:    o.BiasMethod,
		CenterModel:   o.CenterModel,
		Level:         o.Level,
		HartungKnapp:  o.HartungKnapp,
		Prediction:    o.Prediction,
		MaxIterations: o.MaxIterations,
	}
}

// analyzeRequest carries inline studies plus analysis options.
type analyzeRequest struct {
	setInput
	analyzeOptions
}

// batchRequest carries several study sets analyzed under shared options.
type batchRequest struct {
	Sets    []setInput     `json:"sets"`
	Options analyzeOptions `json:"options"`
}

// handleAnalyze runs trim-and-fill on studies posted inline.
func (a *App) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Studies) == 0 {
		a.writeError(w, http.StatusBadRequest, "at least one study is required")
		return
	}

	result, err := a.analysis.Run(r.Context(), req.serviceRequest(req.set()))
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeFile runs trim-and-fill on an uploaded CSV or XLSX study
// table. Options arrive as form fields next to the file part.
func (a *App) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		a.writeError(w, http.StatusBadRequest, fmt.Sprintf("file exceeds the %dMB limit", maxUploadSize>>20))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".csv" && ext != ".xlsx" && ext != ".xlsm" {
		a.writeError(w, http.StatusBadRequest, "only .csv, .xlsx and .xlsm study tables are supported")
		return
	}

	// The tabular reader works on paths, so stage the upload in a temp file.
	tmp, err := os.CreateTemp("", "upload-*"+ext)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		a.writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	tmp.Close()

	set, err := a.reader.Read(r.Context(), tmp.Name())
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	// The staged file has a generated name; label from the upload instead.
	if label := r.FormValue("label"); label != "" {
		set.Label = label
	} else {
		set.Label = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if measure := r.FormValue("measure"); measure != "" {
		set.Measure = measure
	}

	result, err := a.analysis.Run(r.Context(), optionsFromForm(r).serviceRequest(set))
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, result)
}

// handleAnalyzeBatch runs trim-and-fill over several sets posted at once.
func (a *App) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Sets) == 0 {
		a.writeError(w, http.StatusBadRequest, "at least one study set is required")
		return
	}

	sets := make([]*study.Set, 0, len(req.Sets))
	for _, s := range req.Sets {
		sets = append(sets, s.set())
	}

	outcome, err := a.batch.Run(r.Context(), app.BatchRequest{
		Sets:    sets,
		Options: req.Options.serviceRequest(nil),
	})
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, outcome)
}

// handleDescribe returns the descriptive profile of posted studies without
// running any correction.
func (a *App) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req setInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Studies) == 0 {
		a.writeError(w, http.StatusBadRequest, "at least one study is required")
		return
	}

	profile, err := analysis.Describe(req.set())
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, profile)
}

// optionsFromForm reads analysis options from multipart form fields.
func optionsFromForm(r *http.Request) analyzeOptions {
	opts := analyzeOptions{
		Estimator:   r.FormValue("estimator"),
		Side:        r.FormValue("side"),
		BiasMethod:  r.FormValue("bias_method"),
		CenterModel: r.FormValue("center_model"),
	}
	if v := r.FormValue("level"); v != "" {
		if level, err := strconv.ParseFloat(v, 64); err == nil {
			opts.Level = level
		}
	}
	if v := r.FormValue("hartung_knapp"); v != "" {
		opts.HartungKnapp, _ = strconv.ParseBool(v)
	}
	if v := r.FormValue("prediction"); v != "" {
		opts.Prediction, _ = strconv.ParseBool(v)
	}
	if v := r.FormValue("max_iterations"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxIterations = n
		}
	}
	return opts
}
