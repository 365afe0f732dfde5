package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantoshi/hedgefolio/internal/api"
	handler "github.com/quantoshi/hedgefolio/internal/api/handler/api"
	"github.com/quantoshi/hedgefolio/internal/api/job"
	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/config"
	"github.com/quantoshi/hedgefolio/internal/logger"
	"github.com/quantoshi/hedgefolio/internal/metrics"
	"github.com/quantoshi/hedgefolio/internal/storage/archive"
	"github.com/quantoshi/hedgefolio/internal/storage/result"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hedgefolio API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newArchiver builds the run archive from config.
func newArchiver(cfg config.ArchiveConfig) (*archive.Archiver, error) {
	var backend archive.Backend
	var err error

	switch cfg.Type {
	case "", "localfs":
		backend, err = archive.NewLocalFS(cfg.Path)
	case "s3":
		backend, err = archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(backend), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	log.Info("starting hedgefolio server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("price_source", cfg.PriceSource.Provider),
	)

	provider, err := newProvider(cfg, "")
	if err != nil {
		return fmt.Errorf("creating price source: %w", err)
	}

	archiver, err := newArchiver(cfg.Storage.Archive)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry()
	}

	jobStore := job.NewStore(cfg.Server.MaxJobs, time.Duration(cfg.Server.JobTTLHours)*time.Hour)
	results := result.NewMemoryStore(cfg.Server.MaxJobs)

	handlers := api.Handlers{
		Backtest: handler.NewBacktestHandler(
			jobStore,
			backtest.New(),
			provider,
			results,
			archiver,
			cfg.Backtest,
			registry,
			log,
		),
		Scenario:   handler.NewScenarioHandler(registry),
		Allocation: handler.NewAllocationHandler(),
	}

	server := api.NewServer(api.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		MetricsPath: cfg.Metrics.Path,
	}, handlers, registry, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down hedgefolio server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
