package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/cost"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/engine"
	"github.com/fyrsmithlabs/ragd/internal/generation"
	ragdhttp "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/reindex"
	"github.com/fyrsmithlabs/ragd/internal/retrieval"
	"github.com/fyrsmithlabs/ragd/internal/storage/sqlite"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/usage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragd daemon",
	Long: `Start the ragd HTTP server with the reindex scheduler.

Configuration is loaded from the optional --config YAML file and
environment variables (e.g. SERVER_PORT, GENERATION_API_KEY).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	logger.Info("starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("reindex_interval", cfg.Reindex.Interval),
	)

	if !cfg.Generation.APIKey.IsSet() {
		return fmt.Errorf("generation API key is required (set GENERATION_API_KEY)")
	}

	tel, err := telemetry.New(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store, err := sqlite.NewStore(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	logger.Info("storage ready", zap.String("path", store.Path()))

	docs := document.NewStore()
	index, err := retrieval.NewIndex(retrieval.NewLexicalScorer())
	if err != nil {
		return fmt.Errorf("creating retrieval index: %w", err)
	}
	chk, err := chunker.New(cfg.Chunking.WindowWords, cfg.Chunking.OverlapWords)
	if err != nil {
		return fmt.Errorf("creating chunker: %w", err)
	}

	provider, err := generation.NewHTTPProvider(cfg.Generation.APIKey.Value(), cfg.Generation.BaseURL)
	if err != nil {
		return fmt.Errorf("creating generation provider: %w", err)
	}

	reporter := usage.NewReporter(store.UsageLedger(), logger)

	eng, err := engine.NewEngine(cfg.Retrieval, cfg.Generation, docs, index, chk, provider, reporter, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer eng.Close()

	reindexer, err := reindex.NewService(cfg.Reindex, docs, chk, index, store.JobStore(), logger)
	if err != nil {
		return fmt.Errorf("creating reindex service: %w", err)
	}
	defer reindexer.Close()

	scheduler, err := reindex.NewScheduler(reindexer, cfg.Reindex.Interval, logger)
	if err != nil {
		return fmt.Errorf("creating reindex scheduler: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	estimator, err := cost.NewEstimator(store.JobStore(), cfg.Reindex)
	if err != nil {
		return fmt.Errorf("creating cost estimator: %w", err)
	}

	srv, err := ragdhttp.NewServer(eng, reindexer, estimator, store, logger, &ragdhttp.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CronSecret: cfg.Server.CronSecret.Value(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("received signal, shutting down gracefully", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
