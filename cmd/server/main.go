package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"cashlens/internal/analysis"
	"cashlens/internal/budget"
	"cashlens/internal/classifier"
	"cashlens/internal/config"
	"cashlens/internal/database"
	"cashlens/internal/filestore"
	"cashlens/internal/forecast"
	"cashlens/internal/handlers"
	"cashlens/internal/ingest"
	"cashlens/internal/jobs"
	"cashlens/internal/kpi"
	"cashlens/internal/lexicon"
	"cashlens/internal/logger"
	"cashlens/internal/reports"
	"cashlens/internal/version"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.Default()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		log.Error("database_dir_failed", "path", cfg.DatabasePath, "error", err.Error())
		os.Exit(1)
	}
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("database_open_failed", "path", cfg.DatabasePath, "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		log.Error("database_init_failed", "error", err.Error())
		os.Exit(1)
	}

	files, err := filestore.New(cfg.UploadsDir, cfg.FilestorePassphrase)
	if err != nil {
		log.Error("filestore_init_failed", "path", cfg.UploadsDir, "error", err.Error())
		os.Exit(1)
	}

	lex := lexicon.Default()
	k := kpi.NewEngine(db)
	rep := reports.New(k, forecast.NewEngine(db), analysis.NewEngine(k, db, lex), cfg.ReportCacheTTL)
	pipeline := ingest.NewPipeline(db, classifier.New(lex))

	worker := jobs.NewWorker(db, log, cfg.JobPollInterval)
	worker.Register(jobs.IngestUploadJob, jobs.IngestUploadHandler(files, pipeline, rep.Invalidate))
	worker.Start()
	defer worker.Stop()

	h := handlers.New(db, files, rep, budget.NewService(db), cfg.MaxUploadSizeBytes)
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server_starting", "port", cfg.Port, "address", "http://localhost:"+cfg.Port,
			"version", version.Version, "encrypted_uploads", files.Encrypted())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server_failed", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server_shutdown_failed", "error", err.Error())
	}
}
