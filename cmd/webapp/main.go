package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"taxanalyzer/client"
	"taxanalyzer/config"
	"taxanalyzer/db"
	"taxanalyzer/logging"
	"taxanalyzer/ml"
	"taxanalyzer/monitoring"
	"taxanalyzer/pipeline"
	"taxanalyzer/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CONFIG_PATH or config.yaml)")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pipeline.NewStore(cfg.Dataset.Path, cfg.Dataset.CacheSize, logger)
	if err != nil {
		logger.Fatal("failed to load dataset", zap.String("path", cfg.Dataset.Path), zap.Error(err))
	}
	if cfg.Dataset.Watch && cfg.Dataset.Path != "" {
		go func() {
			if err := store.Watch(ctx); err != nil {
				logger.Warn("dataset watcher stopped", zap.Error(err))
			}
		}()
	}

	var database *db.DB
	if cfg.Database.Path != "" {
		database, err = db.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
		}
		defer database.Close()
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	var model ml.Regressor
	if cfg.Model.Path != "" {
		model, err = ml.LoadModel(cfg.Model.Type, cfg.Model.Path)
		if err != nil {
			logger.Warn("model evaluation disabled", zap.String("path", cfg.Model.Path), zap.Error(err))
			model = nil
		}
	}

	hub := monitoring.NewHub(logger)
	go hub.Run(ctx)

	server, err := web.New(web.Config{
		Port:         cfg.Web.Port,
		HistoryLimit: cfg.Web.HistoryLimit,
	}, web.Deps{
		Client:    client.New(cfg.Web.ServiceURL, cfg.Web.RequestTimeout),
		Store:     store,
		DB:        database,
		Hub:       hub,
		Model:     model,
		ModelType: cfg.Model.Type,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("failed to build web client", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
