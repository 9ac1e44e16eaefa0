package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"taxanalyzer/config"
	qhttp "taxanalyzer/http"
	"taxanalyzer/logging"
	"taxanalyzer/monitoring"
	"taxanalyzer/predict"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default $CONFIG_PATH or config.yaml)")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Build the prediction policy; the model is loaded once here
	policy, err := predict.NewPolicy(cfg.Service.Policy, cfg.Model.Type, cfg.Model.Path)
	if err != nil {
		if policy == nil {
			logger.Fatal("invalid prediction policy", zap.Error(err))
		}
		logger.Error("model unavailable, every prediction will fail until it is fixed",
			zap.String("model_type", cfg.Model.Type),
			zap.String("model_path", cfg.Model.Path),
			zap.Error(err),
		)
	}
	logger.Info("prediction policy ready", zap.String("policy", policy.Name()))

	// 3. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Service.Port,
		Timeout:        cfg.Service.Timeout,
		AllowedOrigins: cfg.Service.AllowedOrigins,
	}, predict.NewService(policy), monitoring.NewMetrics(), logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := server.Stop(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
}
