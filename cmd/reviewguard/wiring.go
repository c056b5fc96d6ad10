package main

import (
	"context"
	"fmt"

	"reviewguard/adapters/classifier"
	"reviewguard/adapters/excel"
	"reviewguard/adapters/postgres"
	"reviewguard/adapters/report"
	"reviewguard/adapters/sqlite"
	"reviewguard/app"
	"reviewguard/internal"
	"reviewguard/internal/config"
	"reviewguard/internal/migration"
	"reviewguard/ports"

	"github.com/jmoiron/sqlx"
)

// openRunsDB connects to the runs store named by RUNS_DATABASE_URL and
// brings its schema up to date.
func openRunsDB(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*sqlx.DB, error) {
	driver, dsn, err := config.ParseRunsURL(cfg.Runs.URL)
	if err != nil {
		return nil, err
	}

	var db *sqlx.DB
	switch driver {
	case "postgres":
		db, err = postgres.Connect(ctx, dsn)
	default:
		db, err = sqlite.Open(dsn)
	}
	if err != nil {
		return nil, err
	}

	runner := migration.NewRunner()
	if err := runner.Run(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate runs store: %w", err)
	}
	logger.Debug("runs store %s at schema %s", driver, runner.Version())
	return db, nil
}

func openRunRepository(ctx context.Context, cfg *config.Config, logger *internal.Logger) (ports.RunRepository, error) {
	db, err := openRunsDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if db.DriverName() == "postgres" {
		return postgres.NewRunRepository(db), nil
	}
	return sqlite.NewRunRepository(db), nil
}

// newDetectionService wires sources, the run store and report writers.
// The returned cleanup closes every opened database.
func newDetectionService(ctx context.Context, cfg *config.Config, events app.EventSink, logger *internal.Logger) (*app.DetectionService, func(), error) {
	repo, err := openRunRepository(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { repo.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	serviceCfg := app.DetectionServiceConfig{
		Repository: repo,
		Writers: []ports.ReportWriter{
			excel.NewReportWriter(cfg.Paths.ReportDir, logger.Named("ExcelReport")),
			report.NewHTMLWriter(cfg.Paths.ReportDir, logger.Named("HTMLReport")),
		},
		Forest: forestConfig(cfg),
		Events: events,
		Logger: logger,
	}

	if cfg.Data.FeatureFile != "" {
		serviceCfg.Tables = excel.NewTableSource(excel.DefaultExcelConfig(cfg.Data.FeatureFile), logger.Named("Excel"))
		logger.Info("reading feature table from %s", cfg.Data.FeatureFile)
	} else {
		reviewsDB, err := sqlite.OpenExisting(cfg.Data.ReviewsDBPath)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { reviewsDB.Close() })
		serviceCfg.Reviews = sqlite.NewReviewSource(reviewsDB, logger.Named("Reviews"))
		logger.Info("reading reviews from %s", cfg.Data.ReviewsDBPath)
	}

	return app.NewDetectionService(serviceCfg), cleanup, nil
}

func forestConfig(cfg *config.Config) classifier.ForestConfig {
	forest := classifier.DefaultForestConfig()
	forest.Trees = cfg.Forest.Trees
	forest.MaxDepth = cfg.Forest.MaxDepth
	forest.Workers = cfg.Training.Workers
	return forest
}

func defaultRequest(cfg *config.Config) app.DetectionRequest {
	return app.DetectionRequest{
		Algorithms:    cfg.Training.Algorithms,
		Threshold:     cfg.Training.Threshold,
		Iterations:    cfg.Training.Iterations,
		TestFraction:  cfg.Training.TestFraction,
		Seed:          cfg.Training.Seed,
		PositiveLabel: cfg.Training.PositiveLabel,
		Workers:       cfg.Training.Workers,
	}
}
