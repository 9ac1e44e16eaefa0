// Package config loads the settings shared by the prediction service, the
// web client and the trainer. Values come from a YAML file, are then
// overridden from the environment, and are validated once at startup.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is used when neither -config nor CONFIG_PATH is given.
const DefaultPath = "config.yaml"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Model    ModelConfig    `yaml:"model"`
	Web      WebConfig      `yaml:"web"`
	Dataset  DatasetConfig  `yaml:"dataset"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// ServiceConfig configures the prediction service process.
type ServiceConfig struct {
	Port           int           `yaml:"port" env:"SERVICE_PORT" validate:"min=1,max=65535"`
	Timeout        time.Duration `yaml:"timeout" env:"SERVICE_TIMEOUT" validate:"gt=0"`
	AllowedOrigins []string      `yaml:"allowed_origins" env:"SERVICE_ALLOWED_ORIGINS" env-separator:","`
	Policy         string        `yaml:"policy" env:"PREDICT_POLICY" validate:"oneof=formula model"`
}

// ModelConfig points at the trained artifact used by the model policy.
type ModelConfig struct {
	Type string `yaml:"type" env:"MODEL_TYPE" validate:"oneof=linear_regression regression_tree"`
	Path string `yaml:"path" env:"MODEL_PATH"`
}

// WebConfig configures the form and dashboard client.
type WebConfig struct {
	Port           int           `yaml:"port" env:"WEB_PORT" validate:"min=1,max=65535"`
	ServiceURL     string        `yaml:"service_url" env:"PREDICTION_SERVICE_URL" validate:"required,url"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PREDICTION_TIMEOUT" validate:"gt=0"`
	HistoryLimit   int           `yaml:"history_limit" env:"HISTORY_LIMIT" validate:"gte=0"`
}

type DatasetConfig struct {
	Path      string `yaml:"path" env:"DATA_PATH"`
	Watch     bool   `yaml:"watch" env:"DATA_WATCH"`
	CacheSize int    `yaml:"cache_size" env:"DATA_CACHE_SIZE" validate:"gte=1"`
}

// DatabaseConfig locates the sqlite file. An empty path disables history.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS" validate:"gte=0"`
	JSON       bool   `yaml:"json" env:"LOG_JSON"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() Config {
	return Config{
		Service: ServiceConfig{
			Port:           5000,
			Timeout:        10 * time.Second,
			AllowedOrigins: []string{"*"},
			Policy:         "formula",
		},
		Model: ModelConfig{
			Type: "linear_regression",
			Path: "models/model.json",
		},
		Web: WebConfig{
			Port:           8000,
			ServiceURL:     "http://localhost:5000",
			RequestTimeout: 5 * time.Second,
			HistoryLimit:   10,
		},
		Dataset: DatasetConfig{
			Path:      "data/tax_brackets.csv",
			CacheSize: 32,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Path resolves the config file location from flagValue or CONFIG_PATH.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Service.Policy == "model" && c.Model.Path == "" {
		return errors.New("invalid config: model.path is required when service.policy is model")
	}
	return nil
}
