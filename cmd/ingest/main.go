package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/med-tracker/backend/internal/ingestion"
	"github.com/med-tracker/backend/internal/storage/sqlite"
	"github.com/med-tracker/backend/pkg/config"
	appLogger "github.com/med-tracker/backend/pkg/logger"
)

// Builds the local drug store from a DrugBank XML export. Run once before
// starting the API server; a second run against a populated store is a
// no-op unless -force is given.
func main() {
	os.Exit(run())
}

func run() int {
	xmlPath := flag.String("xml", "", "path to the DrugBank XML export (default from config)")
	dbPath := flag.String("db", "", "path to the SQLite store (default from config)")
	force := flag.Bool("force", false, "drop and rebuild an existing store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return 1
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		return 1
	}
	defer appLogger.Sync()

	if *xmlPath == "" {
		*xmlPath = cfg.DrugBank.XMLPath
	}
	if *dbPath == "" {
		*dbPath = cfg.SQLite.Path
	}

	src, err := os.Open(*xmlPath)
	if err != nil {
		appLogger.Error("Source document unavailable", zap.String("path", *xmlPath), zap.Error(err))
		return 1
	}
	defer src.Close()

	store, err := sqlite.NewClient(*dbPath)
	if err != nil {
		appLogger.Error("Failed to open target store", zap.String("path", *dbPath), zap.Error(err))
		return 1
	}
	defer store.Close()

	builder := ingestion.NewBuilder(store)
	builder.SetBatchSize(cfg.DrugBank.BatchSize)
	builder.SetProgressEvery(cfg.DrugBank.ProgressEvery)

	appLogger.Info("Starting store build",
		zap.String("xml", *xmlPath),
		zap.String("db", *dbPath),
		zap.Bool("force", *force),
	)

	start := time.Now()
	result, err := builder.Build(context.Background(), src, *force)
	if err != nil {
		appLogger.Error("Store build failed; delete the target store and retry", zap.Error(err))
		return 1
	}

	if result.NoOp {
		appLogger.Info("Store already built, nothing to do", zap.Int("drugs", result.Drugs))
		return 0
	}

	appLogger.Info("Store build finished",
		zap.Int("drugs", result.Drugs),
		zap.Int("interactions", result.Interactions),
		zap.Int("food_interactions", result.FoodInteractions),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	return 0
}
