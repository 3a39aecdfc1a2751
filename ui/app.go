// Package ui serves the JSON API over the analysis services: run
// trim-and-fill on posted or uploaded study sets, profile inputs, and browse
// the archive of past analyses.
package ui

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gometa/app"
	"gometa/domain/core"
	"gometa/ports"
)

// App represents the API application
type App struct {
	router   *chi.Mux
	analysis *app.AnalysisService
	batch    *app.BatchService
	reader   ports.StudyReaderPort

	port         string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Config holds API application configuration
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewApp creates the API application over the given services. The reader
// backs the file-upload endpoint.
func NewApp(config Config, analysis *app.AnalysisService, batch *app.BatchService, reader ports.StudyReaderPort) *App {
	a := &App{
		router:       chi.NewRouter(),
		analysis:     analysis,
		batch:        batch,
		reader:       reader,
		port:         config.Port,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
	}

	a.setupMiddleware()
	a.setupRoutes()

	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	// Health
	a.router.Get("/api/health", a.handleHealth)

	// Analysis endpoints
	a.router.Post("/api/analyze", a.handleAnalyze)
	a.router.Post("/api/analyze/file", a.handleAnalyzeFile)
	a.router.Post("/api/analyze/batch", a.handleAnalyzeBatch)
	a.router.Post("/api/describe", a.handleDescribe)

	// Archive endpoints
	a.router.Get("/api/analyses", a.handleListAnalyses)
	a.router.Get("/api/analyses/{id}", a.handleGetAnalysis)
}

// Router exposes the HTTP handler, mainly for tests and embedding.
func (a *App) Router() http.Handler {
	return a.router
}

// Start starts the HTTP server and blocks.
func (a *App) Start() error {
	addr := ":" + a.port
	log.Printf("Starting gometa API server on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  a.readTimeout,
		WriteTimeout: a.writeTimeout,
	}
	return srv.ListenAndServe()
}

// JSON helpers

func (a *App) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (a *App) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]interface{}{"error": message})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsNotFoundError(err):
		return http.StatusNotFound
	case core.IsValidationError(err):
		return http.StatusBadRequest
	case core.IsInsufficientData(err):
		return http.StatusUnprocessableEntity
	case core.IsNotEstimable(err):
		return http.StatusUnprocessableEntity
	case core.IsConvergenceError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
