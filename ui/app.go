package ui

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"phenoprofile/app"
	"phenoprofile/internal"
	"phenoprofile/internal/config"
)

// App is the JSON HTTP API over the profiling services
type App struct {
	router   *chi.Mux
	profiler *app.ProfilingService
	paired   *app.PairedService
	analysis config.AnalysisConfig
	maxBytes int64
	validate *validator.Validate
	logger   *internal.Logger
}

// Config holds API configuration
type Config struct {
	MaxUploadMB int64
	Analysis    config.AnalysisConfig
}

// NewApp creates the API and its routes
func NewApp(cfg Config, profiler *app.ProfilingService, paired *app.PairedService) *App {
	maxUpload := cfg.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 32
	}
	a := &App{
		router:   chi.NewRouter(),
		profiler: profiler,
		paired:   paired,
		analysis: cfg.Analysis,
		maxBytes: maxUpload << 20,
		validate: validator.New(),
		logger:   internal.DefaultLogger,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// ServeHTTP makes App an http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(a.requestLogger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	a.router.Route("/api/v1", func(r chi.Router) {
		r.With(a.limitBody).Post("/analyses", a.handleAnalysis)
		r.With(a.limitBody).Post("/paired", a.handlePaired)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{id}", a.handleGetRun)
	})
}
