package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"taxanalyzer/config"
	"taxanalyzer/db"
	"taxanalyzer/logging"
	"taxanalyzer/ml"
	"taxanalyzer/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CONFIG_PATH or config.yaml)")
	dataPath := flag.String("data", "", "tax bracket csv (default dataset.path, builtin rows when empty)")
	modelType := flag.String("model_type", "", "linear_regression or regression_tree (default model.type)")
	modelPath := flag.String("model_path", "", "model output path (default model.path)")
	maxDepth := flag.Int("max_depth", 5, "max tree depth")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	seed := flag.Int64("seed", 42, "shuffle seed")
	dbPath := flag.String("db", "", "sqlite database to record the run in (default database.path)")
	flag.Parse()

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if *dataPath == "" {
		*dataPath = cfg.Dataset.Path
	}
	if *modelType == "" {
		*modelType = cfg.Model.Type
	}
	if *modelPath == "" {
		*modelPath = cfg.Model.Path
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.Path
	}

	store, err := pipeline.NewStore(*dataPath, 1, logger)
	if err != nil {
		logger.Fatal("failed to load dataset", zap.String("path", *dataPath), zap.Error(err))
	}
	features, targets := pipeline.Features(store.Snapshot().Records)

	trainX, trainY, testX, testY := ml.SplitDataset(features, targets, *testRatio, *seed)

	model, err := ml.NewModel(*modelType, *maxDepth)
	if err != nil {
		logger.Fatal("failed to build model", zap.Error(err))
	}
	if err := model.Fit(trainX, trainY); err != nil {
		logger.Fatal("failed to train model", zap.Error(err))
	}

	evalX, evalY := testX, testY
	if len(evalX) == 0 {
		evalX, evalY = trainX, trainY
	}
	metrics, err := ml.Evaluate(model, evalX, evalY)
	if err != nil {
		logger.Fatal("failed to evaluate model", zap.Error(err))
	}
	logger.Info("model evaluated",
		zap.String("model_type", *modelType),
		zap.Int("train_rows", len(trainX)),
		zap.Int("test_rows", metrics.Samples),
		zap.Float64("mse", metrics.MSE),
		zap.Float64("mae", metrics.MAE),
		zap.Float64("r2", metrics.R2),
	)

	if err := os.MkdirAll(filepath.Dir(*modelPath), 0o755); err != nil {
		logger.Fatal("failed to create model dir", zap.Error(err))
	}
	if err := model.Save(*modelPath); err != nil {
		logger.Fatal("failed to save model", zap.Error(err))
	}

	if *dbPath != "" {
		database, err := db.Open(*dbPath)
		if err != nil {
			logger.Fatal("failed to open database", zap.String("path", *dbPath), zap.Error(err))
		}
		defer database.Close()
		err = database.SaveTrainingRun(db.TrainingLog{
			ModelType:  *modelType,
			ModelPath:  *modelPath,
			MSE:        metrics.MSE,
			MAE:        metrics.MAE,
			R2:         metrics.R2,
			DataPoints: len(features),
		})
		if err != nil {
			logger.Error("failed to record training run", zap.Error(err))
		}
	}

	fmt.Printf("model saved to %s\n", *modelPath)
}
