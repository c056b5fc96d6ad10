package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reviewguard/app"
	"reviewguard/internal"
	"reviewguard/internal/api"
	"reviewguard/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		algorithms   string
		threshold    float64
		iterations   int
		testFraction float64
		seed         int64
		positive     string
		featureFile  string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Self-train the configured classifiers and report evaluation metrics",
		Long: `Load reviews, engineer features, balance classes, then self-train each
algorithm and evaluate it on a frozen evaluation set.

Flags override the environment (THRESHOLD, ITERATIONS, TEST_FRACTION, SEED,
POSITIVE_LABEL, ALGORITHMS, FEATURE_FILE).

Example: reviewguard train --algorithms nb,rf --threshold 0.8 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("feature-file") {
				cfg.Data.FeatureFile = featureFile
			}
			logger := internal.NewLogger(cfg.LogLevel)

			service, cleanup, err := newDetectionService(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			req := defaultRequest(cfg)
			flags := cmd.Flags()
			if flags.Changed("algorithms") {
				req.Algorithms = strings.Split(algorithms, ",")
			}
			if flags.Changed("threshold") {
				req.Threshold = threshold
			}
			if flags.Changed("iterations") {
				req.Iterations = iterations
			}
			if flags.Changed("test-fraction") {
				req.TestFraction = testFraction
			}
			if flags.Changed("seed") {
				req.Seed = seed
			}
			if flags.Changed("positive-label") {
				req.PositiveLabel = positive
			}

			result, err := service.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printResult(result)
			}

			if failed := result.Failed(); failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(result.Runs))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&algorithms, "algorithms", "", "Comma separated classifiers (random_forest, naive_bayes)")
	flags.Float64Var(&threshold, "threshold", 0.7, "Confidence a held-out sample must exceed to be promoted")
	flags.IntVar(&iterations, "iterations", 15, "Maximum self-training iterations")
	flags.Float64Var(&testFraction, "test-fraction", 0.25, "Share of samples held out from initial training")
	flags.Int64Var(&seed, "seed", 42, "Random seed for deterministic operations")
	flags.StringVar(&positive, "positive-label", "Y", "Label treated as the positive (fake) class")
	flags.StringVar(&featureFile, "feature-file", "", "Read an engineered feature table from xlsx/csv instead of the review database")
	flags.BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}

func printResult(result *app.DetectionResult) {
	fmt.Printf("Table %s: %d samples, %d features\n", result.TableFingerprint.Short(), result.Samples, len(result.FeatureColumns))
	for label, n := range result.ClassCounts {
		fmt.Printf("  %s: %d\n", label, n)
	}
	for _, outcome := range result.Runs {
		rec := outcome.Record
		fmt.Println()
		if outcome.Err != nil {
			fmt.Printf("%s run %s FAILED: %v\n", rec.Algorithm, rec.ID, outcome.Err)
			continue
		}
		fmt.Print(outcome.Metrics.Format(fmt.Sprintf("%s (run %s, %s after %d iterations)",
			rec.Algorithm, rec.ID, rec.TerminalState, rec.Iterations)))
		for _, path := range outcome.Reports {
			fmt.Printf("  report: %s\n", path)
		}
	}
	fmt.Printf("\nFinished in %dms\n", result.RuntimeMs)
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API with live training progress over SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			logger := internal.NewLogger(cfg.LogLevel)
			gin.SetMode(cfg.Server.GinMode)

			hub := api.NewSSEHub(logger)
			defer hub.Close()

			service, cleanup, err := newDetectionService(cmd.Context(), cfg, api.NewSSEEventBroadcaster(hub), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			server := api.NewServer(service, defaultRequest(cfg), hub, logger)
			return server.ListenAndServe(cmd.Context(), ":"+cfg.Server.Port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default $PORT or 8080)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	genCfg := testkit.DefaultReviewConfig()
	var path string

	cmd := &cobra.Command{
		Use:   "seed-db",
		Short: "Generate a synthetic review database",
		Long: `Write a SQLite database with the reviewer, restaurant and review tables
filled with labelled synthetic reviews. Any existing file at the path is
replaced.

Example: reviewguard seed-db --path data/raw/yelpResData.db --reviews 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = os.Getenv("REVIEWS_DB_PATH")
			}
			if path == "" {
				path = "data/raw/yelpResData.db"
			}
			summary, err := testkit.NewReviewDataGenerator(genCfg, internal.DefaultLogger).CreateDatabase(cmd.Context(), path)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s: %d reviews (%d fake), %d reviewers, %d restaurants\n",
				summary.Path, summary.Reviews, summary.Fake, summary.Reviewers, summary.Restaurants)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", "", "Database file (default $REVIEWS_DB_PATH)")
	flags.IntVar(&genCfg.ReviewCount, "reviews", genCfg.ReviewCount, "Number of reviews")
	flags.IntVar(&genCfg.ReviewerCount, "reviewers", genCfg.ReviewerCount, "Number of reviewers")
	flags.IntVar(&genCfg.RestaurantCount, "restaurants", genCfg.RestaurantCount, "Number of restaurants")
	flags.Float64Var(&genCfg.FakeRate, "fake-rate", genCfg.FakeRate, "Share of reviews labelled fake")
	flags.Int64Var(&genCfg.Seed, "seed", genCfg.Seed, "Random seed")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the runs store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := internal.NewLogger(cfg.LogLevel)
			db, err := openRunsDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println("Runs store is up to date")
			return nil
		},
	}
}
