package ui

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gometa/domain/core"
)

// handleHealth reports liveness.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListAnalyses returns archived analysis summaries, newest first.
func (a *App) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	summaries, err := a.analysis.List(r.Context(), limit)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": summaries,
		"count":    len(summaries),
	})
}

// handleGetAnalysis returns one archived analysis in full.
func (a *App) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseAnalysisID(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.analysis.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, statusFor(err), err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, result)
}
