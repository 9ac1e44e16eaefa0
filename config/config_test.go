package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.Port != 5000 || cfg.Service.Policy != "formula" {
		t.Fatalf("unexpected service defaults: %+v", cfg.Service)
	}
	if cfg.Web.RequestTimeout != 5*time.Second {
		t.Fatalf("expected 5s client timeout, got %v", cfg.Web.RequestTimeout)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 5050
  policy: model
  timeout: 3s
model:
  type: regression_tree
  path: /tmp/tree.json
web:
  service_url: http://predictor:5050
  request_timeout: 2s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.Port != 5050 || cfg.Service.Policy != "model" || cfg.Service.Timeout != 3*time.Second {
		t.Fatalf("unexpected service config: %+v", cfg.Service)
	}
	if cfg.Model.Type != "regression_tree" || cfg.Model.Path != "/tmp/tree.json" {
		t.Fatalf("unexpected model config: %+v", cfg.Model)
	}
	if cfg.Web.ServiceURL != "http://predictor:5050" || cfg.Web.RequestTimeout != 2*time.Second {
		t.Fatalf("unexpected web config: %+v", cfg.Web)
	}
	// untouched keys keep their defaults
	if cfg.Web.Port != 8000 || cfg.Log.Level != "info" {
		t.Fatalf("defaults lost: web=%+v log=%+v", cfg.Web, cfg.Log)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "service:\n  port: 5050\n")
	t.Setenv("SERVICE_PORT", "6000")
	t.Setenv("PREDICTION_SERVICE_URL", "http://example.test:6000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Service.Port != 6000 {
		t.Fatalf("expected env port 6000, got %d", cfg.Service.Port)
	}
	if cfg.Web.ServiceURL != "http://example.test:6000" {
		t.Fatalf("expected env service url, got %s", cfg.Web.ServiceURL)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown policy", body: "service:\n  policy: oracle\n"},
		{name: "model without path", body: "service:\n  policy: model\nmodel:\n  path: \"\"\n"},
		{name: "bad url", body: "web:\n  service_url: not a url\n"},
		{name: "bad level", body: "log:\n  level: loud\n"},
		{name: "bad yaml", body: "service: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPath(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := Path(""); got != DefaultPath {
		t.Fatalf("expected default path, got %s", got)
	}
	t.Setenv("CONFIG_PATH", "/etc/tax.yaml")
	if got := Path(""); got != "/etc/tax.yaml" {
		t.Fatalf("expected env path, got %s", got)
	}
	if got := Path("local.yaml"); got != "local.yaml" {
		t.Fatalf("expected flag path, got %s", got)
	}
}
