// Package main provides the entry point for the data ingestion service. It
// downloads raw result archives, normalizes them into participation records
// and persists the corpus to PostgreSQL, either once or on a weekend cron.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-engine/internal/config"
	"github.com/yourusername/keiba-engine/internal/database"
	"github.com/yourusername/keiba-engine/internal/datasource"
	"github.com/yourusername/keiba-engine/internal/ingest"
	"github.com/yourusername/keiba-engine/internal/logger"
	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/repository"
	"github.com/yourusername/keiba-engine/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	fromYear   int
	toYear     int
	daemon     bool
	skipFetch  bool
	cfg        *config.Config
	appLogger  *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().IntVar(&fromYear, "from", time.Now().Year(), "First year of result archives to fetch")
	rootCmd.Flags().IntVar(&toYear, "to", time.Now().Year(), "Last year of result archives to fetch")
	rootCmd.Flags().BoolVar(&daemon, "daemon", false, "Keep running and refresh on the configured cron schedule")
	rootCmd.Flags().BoolVar(&skipFetch, "skip-fetch", false, "Skip downloading and only normalize existing raw files")
}

var rootCmd = &cobra.Command{
	Use:   "data-ingestion",
	Short: "Download and normalize raw result archives",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
			region := os.Getenv("AWS_REGION")
			secretName := os.Getenv("AWS_SECRET_NAME")
			if region == "" || secretName == "" {
				return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
			}
			if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
				return fmt.Errorf("failed to load secrets: %w", err)
			}
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		appLogger = logger.NewLogger(cfg.App.LogLevel)
		metrics.InitRegistry()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context) error {
	db, err := database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repo := repository.NewPostgresRecordRepository(db)

	if cfg.Metrics.Enabled {
		startMetricsServer()
	}

	if err := ingestOnce(ctx, repo); err != nil {
		return err
	}
	if !daemon {
		return nil
	}

	sched := scheduler.NewScheduler(appLogger)
	err = sched.ScheduleRefresh(cfg.Scheduler.CronExpression, "archive-refresh", func(jobCtx context.Context) error {
		fromYear = time.Now().Year()
		toYear = fromYear
		return ingestOnce(jobCtx, repo)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}

	appLogger.WithField("next_run", sched.GetNextRun().Format(time.RFC3339)).Info("Ingestion daemon running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return sched.Stop()
}

func ingestOnce(ctx context.Context, repo repository.RecordRepository) error {
	if !skipFetch {
		client := datasource.NewRateLimitedHTTPClient(downloadConfig(), appLogger)
		defer client.Close()

		dl := datasource.NewDownloader(client, cfg.Datasource.BaseURL, cfg.Datasource.APIKey, appLogger)
		if _, err := dl.FetchRange(ctx, fromYear, toYear, cfg.Data.RawDir); err != nil {
			return err
		}
		if err := dl.FetchPedigree(ctx, cfg.Data.PedigreeFile); err != nil {
			return err
		}
	}

	normalizer := ingest.NewNormalizer(appLogger)
	records, err := normalizer.Normalize(cfg.Data.RawDir, cfg.Data.PedigreeFile)
	if err != nil {
		return fmt.Errorf("failed to normalize corpus: %w", err)
	}

	inserted, err := repo.SaveBatch(ctx, records)
	if err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}

	appLogger.WithFields(logrus.Fields{
		"normalized": len(records),
		"inserted":   inserted,
	}).Info("Ingestion run completed")
	return nil
}

func downloadConfig() datasource.HTTPClientConfig {
	dc := datasource.DefaultHTTPClientConfig()
	if cfg.Datasource.TimeoutSeconds > 0 {
		dc.Timeout = time.Duration(cfg.Datasource.TimeoutSeconds) * time.Second
	}
	if cfg.Datasource.MaxRetries > 0 {
		dc.MaxRetries = cfg.Datasource.MaxRetries
	}
	if cfg.Datasource.RateLimit > 0 {
		dc.RateLimit = cfg.Datasource.RateLimit
	}
	return dc
}

func startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Errorf("Metrics server error: %v", err)
		}
	}()
	appLogger.WithField("port", cfg.Metrics.Port).Info("Metrics server started")
}
