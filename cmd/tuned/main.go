package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tunelab/tuning-core/internal/tuned"
	"github.com/tunelab/tuning-core/pkg/config"
	"github.com/tunelab/tuning-core/pkg/logger"
	"github.com/tunelab/tuning-core/pkg/utils"
)

func main() {
	var httpAddr string
	var dataDir string
	var logLevel string
	var studyFile string
	var seed int64
	var evalLatency time.Duration

	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&dataDir, "data-dir", "./data", "directory for the study persistence file")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&studyFile, "study-file", "", "optional YAML study definition to create and start on boot")
	flag.Int64Var(&seed, "seed", 0, "sampling seed, 0 for time-based")
	flag.DurationVar(&evalLatency, "eval-latency", 200*time.Millisecond, "simulated duration of one trial evaluation")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store, err := tuned.NewFileStore(dataDir)
	if err != nil {
		logger.Error("failed to open study store", "dir", dataDir, "error", err)
		stop()
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	evaluator := tuned.NewSimulatedEvaluator(utils.NewRandSource(seed), evalLatency)
	orchestrator := tuned.NewOrchestrator(store, evaluator, tuned.NewMetrics(registry)).WithSeed(seed)
	if err := orchestrator.Load(); err != nil {
		logger.Error("failed to load persisted studies", "error", err)
		stop()
		os.Exit(1)
	}

	if studyFile != "" {
		cfg, err := config.LoadStudy(studyFile)
		if err != nil {
			logger.Error("failed to load study file", "path", studyFile, "error", err)
			stop()
			os.Exit(1)
		}
		st, err := orchestrator.CreateStudy(*cfg)
		if err != nil {
			logger.Error("failed to create study from file", "path", studyFile, "error", err)
			stop()
			os.Exit(1)
		}
		if err := orchestrator.StartStudy(st.ID); err != nil {
			logger.Error("failed to start study from file", "study_id", st.ID, "error", err)
		}
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           tuned.NewHTTPServer(orchestrator, registry).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: event streams stay open for the client's lifetime.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr, "data_dir", store.Path())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Pause running studies so their loops persist a clean final state
	// before the listener closes.
	orchestrator.PauseAll()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
