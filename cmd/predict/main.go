package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/keiba-engine/internal/config"
	"github.com/yourusername/keiba-engine/internal/features"
	"github.com/yourusername/keiba-engine/internal/history"
	"github.com/yourusername/keiba-engine/internal/ingest"
	"github.com/yourusername/keiba-engine/internal/logger"
	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/ml"
	"github.com/yourusername/keiba-engine/internal/models"
	"github.com/yourusername/keiba-engine/internal/predictor"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	cardFile   string
	cfg        *config.Config
	appLogger  *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&cardFile, "card", "f", "", "Path to the race card CSV")
	_ = rootCmd.MarkFlagRequired("card")
}

var rootCmd = &cobra.Command{
	Use:   "predict",
	Short: "Rank the entries of an upcoming race card",
	Long: `Replays the frozen artifact bundle over a race card CSV, fills lag
columns from the historical corpus, requests win probabilities from the model
service and prints the odds-weighted ranking.`,
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
		return runPredict(cmd.Context())
	},
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runPredict(ctx context.Context) error {
	bundle, err := features.LoadBundle(cfg.Data.ArtifactPath)
	if err != nil {
		return err
	}

	normalizer := ingest.NewNormalizer(appLogger)
	card, err := normalizer.LoadFile(cardFile)
	if err != nil {
		return fmt.Errorf("failed to load race card: %w", err)
	}
	if len(card) == 0 {
		return fmt.Errorf("race card %s holds no entries", cardFile)
	}

	hist := history.New(history.SourceFunc(func() ([]*models.ParticipationRecord, error) {
		return normalizer.Normalize(cfg.Data.RawDir, cfg.Data.PedigreeFile)
	}), appLogger, time.Duration(cfg.History.LookupTTLSeconds)*time.Second, cfg.History.LookupMaxSize)

	client := ml.NewHTTPClient(&cfg.ModelService, appLogger)
	defer client.Close()

	engine := features.NewEngine(appLogger)
	pred := predictor.New(engine, hist, client, cfg.Predict.PowerExponent, appLogger)

	ranked, err := pred.Predict(ctx, card, bundle)
	if err != nil {
		return err
	}

	printRanking(ranked)
	return nil
}

func printRanking(ranked []predictor.Prediction) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARK\tUMABAN\tHORSE\tPROB\tODDS\tSCORE")
	for _, p := range ranked {
		fmt.Fprintf(w, "%s\t%d\t%s\t%.4f\t%.1f\t%.4f\n",
			p.Mark, p.Umaban, p.HorseName, p.Probability, p.Odds, p.Score)
	}
	w.Flush()
}
