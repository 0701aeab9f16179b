package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"phenoprofile/adapters/excel"
	"phenoprofile/adapters/postgres"
	"phenoprofile/app"
	"phenoprofile/internal"
	"phenoprofile/internal/config"
	"phenoprofile/ports"
	"phenoprofile/ui"
)

func main() {
	logger := internal.DefaultLogger

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load(os.Getenv("PROFILER_CONFIG"))
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	level := internal.ParseLogLevel(appConfig.Logging.Level)
	if appConfig.Logging.Format == "json" {
		internal.SetDefaultLogger(internal.NewJSONLogger(os.Stderr, level))
	} else {
		internal.SetDefaultLogger(internal.NewLogger(level))
	}
	logger = internal.DefaultLogger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db    *sqlx.DB
		runs  ports.RunRepository
		prefs ports.PreferencesStore
	)
	if appConfig.Database.Enabled() {
		db, err = postgres.Open(ctx, appConfig.Database.URL, appConfig.Database.MaxOpenConns)
		if err != nil {
			logger.Error("Failed to initialize database: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		runs = postgres.NewRunRepository(db)
		prefs = postgres.NewPreferencesRepository(db)
		logger.Info("Run persistence enabled")
	} else if appConfig.Analysis.PreferencesDir != "" {
		prefs = excel.NewPreferencesFile(appConfig.Analysis.PreferencesDir)
		logger.Info("Using preference files in %s", appConfig.Analysis.PreferencesDir)
	}

	api := ui.NewApp(ui.Config{
		MaxUploadMB: appConfig.Server.MaxUploadMB,
		Analysis:    appConfig.Analysis,
	}, app.NewProfilingService(runs, prefs), app.NewPairedService(prefs))

	// Start pprof server for performance profiling
	if appConfig.Pprof.Enabled {
		go func() {
			logger.Info("Performance profiling server starting on :%s", appConfig.Pprof.Port)
			if err := http.ListenAndServe(":"+appConfig.Pprof.Port, nil); err != nil {
				logger.Error("pprof server failed: %v", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed: %v", err)
		}
	}()

	logger.Info("Starting phenoprofile API on :%s", appConfig.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
