package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  num_workers: 4
  filter: "udp port 53"
device:
  type: host
  memory_bytes: 4096
log:
  level: debug
metrics:
  textfile_path: /tmp/capmatrix.prom
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pipeline.NumWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Pipeline.NumWorkers)
	}
	if cfg.Pipeline.Filter != "udp port 53" {
		t.Errorf("Expected filter 'udp port 53', got %q", cfg.Pipeline.Filter)
	}
	if cfg.Device.MemoryBytes != 4096 {
		t.Errorf("Expected 4096 device bytes, got %d", cfg.Device.MemoryBytes)
	}
	// Unset keys keep their defaults.
	if cfg.Device.Parallelism != Default().Device.Parallelism {
		t.Errorf("Expected default parallelism, got %d", cfg.Device.Parallelism)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug log level, got %q", cfg.Log.Level)
	}
	if cfg.Metrics.TextfilePath != "/tmp/capmatrix.prom" {
		t.Errorf("Unexpected textfile path %q", cfg.Metrics.TextfilePath)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  num_workers: 0
device:
  type: ""
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatalf("Expected validation error")
	}
	for _, want := range []string{"num_workers", "device.type"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing file")
	}
	if _, err := LoadConfig(writeConfig(t, "pipeline: [")); err == nil {
		t.Errorf("Expected error for malformed YAML")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default config is invalid: %v", err)
	}
}

func TestLoadConfig_Shipped(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	if err != nil {
		t.Fatalf("Failed to load shipped config: %v", err)
	}
	if cfg.Device.Type != "host" {
		t.Errorf("Expected the shipped config to use the host device, got %s", cfg.Device.Type)
	}
}
