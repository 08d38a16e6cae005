package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-engine/internal/config"
	"github.com/yourusername/keiba-engine/internal/features"
	"github.com/yourusername/keiba-engine/internal/ingest"
	"github.com/yourusername/keiba-engine/internal/logger"
	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/ml"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	submit     bool
	cfg        *config.Config
	appLogger  *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().BoolVar(&submit, "submit", false, "Submit the fitted feature matrix to the model service for training")
}

var rootCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit feature artifacts from the historical corpus",
	Long: `Normalizes the raw result archives, fits all statistical feature
artifacts over the historical corpus and writes the frozen artifact bundle.
Optionally submits the resulting feature matrix to the model service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		appLogger = logger.NewLogger(cfg.App.LogLevel)
		metrics.InitRegistry()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrain(cmd.Context())
	},
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runTrain(ctx context.Context) error {
	start := time.Now()

	normalizer := ingest.NewNormalizer(appLogger)
	records, err := normalizer.Normalize(cfg.Data.RawDir, cfg.Data.PedigreeFile)
	if err != nil {
		return fmt.Errorf("failed to normalize corpus: %w", err)
	}

	engine := features.NewEngine(appLogger)
	rows, bundle, err := engine.Fit(records)
	if err != nil {
		return fmt.Errorf("failed to fit artifacts: %w", err)
	}

	if err := bundle.Save(cfg.Data.ArtifactPath); err != nil {
		return fmt.Errorf("failed to save artifact bundle: %w", err)
	}

	appLogger.WithFields(logrus.Fields{
		"bundle_id":    bundle.ID,
		"fit_rows":     bundle.FitRowCount,
		"max_fit_date": bundle.MaxFitDate.Format("2006-01-02"),
		"artifact":     cfg.Data.ArtifactPath,
		"duration":     time.Since(start).String(),
	}).Info("Artifact bundle written")

	if submit {
		if err := submitTraining(ctx, rows); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stdout, "Fitted %d rows, bundle %s -> %s\n", len(rows), bundle.ID, cfg.Data.ArtifactPath)
	return nil
}

func submitTraining(ctx context.Context, rows []features.FeatureRow) error {
	client := ml.NewHTTPClient(&cfg.ModelService, appLogger)
	defer client.Close()

	if err := client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("model service not ready: %w", err)
	}

	vectors := make([][]float64, len(rows))
	targets := make([]float64, len(rows))
	for i := range rows {
		vectors[i] = rows[i].Vector()
		if rows[i].Rank == 1 {
			targets[i] = 1
		}
	}

	resp, err := client.SubmitTraining(ctx, features.FeatureNames(), vectors, targets)
	if err != nil {
		return fmt.Errorf("failed to submit training: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Training job %s submitted (%s)\n", resp.JobID, resp.Status)
	return nil
}
