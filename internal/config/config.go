package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// PipelineConfig controls the indexing, filtering and aggregation run.
type PipelineConfig struct {
	NumWorkers     int    `yaml:"num_workers"`
	Filter         string `yaml:"filter"`
	EtherTypeCheck bool   `yaml:"ethertype_check"`
}

// DeviceConfig selects and sizes the filter accelerator.
type DeviceConfig struct {
	Type        string `yaml:"type"`
	MemoryBytes int64  `yaml:"memory_bytes"`
	Parallelism int    `yaml:"parallelism"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig holds the metrics export settings.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Device   DeviceConfig   `yaml:"device"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

const defaultDeviceMemory = 1 << 30

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			NumWorkers: runtime.NumCPU(),
		},
		Device: DeviceConfig{
			Type:        "host",
			MemoryBytes: defaultDeviceMemory,
			Parallelism: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads the configuration from a YAML file on top of Default.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values a run cannot proceed without.
func (c *Config) Validate() error {
	var errs []error
	if c.Pipeline.NumWorkers <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.num_workers must be positive, got %d", c.Pipeline.NumWorkers))
	}
	if c.Device.Type == "" {
		errs = append(errs, errors.New("device.type must be set"))
	}
	if c.Device.MemoryBytes <= 0 {
		errs = append(errs, fmt.Errorf("device.memory_bytes must be positive, got %d", c.Device.MemoryBytes))
	}
	if c.Device.Parallelism <= 0 {
		errs = append(errs, fmt.Errorf("device.parallelism must be positive, got %d", c.Device.Parallelism))
	}
	return errors.Join(errs...)
}
