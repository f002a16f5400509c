package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	DataDir   string    `yaml:"data_dir"`
	AuditDir  string    `yaml:"audit_dir"`
	Drift     Drift     `yaml:"drift,omitempty"`
	Fairness  Fairness  `yaml:"fairness,omitempty"`
	Audit     Audit     `yaml:"audit,omitempty"`
	Worker    Worker    `yaml:"worker,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

// Drift configures the drift calculator
type Drift struct {
	WindowSize   int     `yaml:"window_size"`
	PSIThreshold float64 `yaml:"psi_threshold"`
	KSThreshold  float64 `yaml:"ks_threshold"`
	Bins         int     `yaml:"bins"`
	MinSample    int     `yaml:"min_sample"`
}

// Fairness configures the fairness calculator
type Fairness struct {
	DefaultAttribute  string  `yaml:"default_attribute"`
	FallbackThreshold float64 `yaml:"fallback_threshold"`
}

// Audit configures the audit recorder
type Audit struct {
	RecordTimeout time.Duration `yaml:"record_timeout"`
}

// Worker configures the background evaluation queue
type Worker struct {
	QueueSize int `yaml:"queue_size"`
	Workers   int `yaml:"workers"`
}

// Telemetry configures trace and metric export
type Telemetry struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	MetricsAddr  string `yaml:"metrics_addr"`
}

// Default returns a configuration that works out of the box
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		AuditDir: "./data/audit",
		Drift: Drift{
			WindowSize:   100,
			PSIThreshold: 0.25,
			KSThreshold:  0.20,
			Bins:         10,
			MinSample:    10,
		},
		Fairness: Fairness{
			DefaultAttribute:  "gender",
			FallbackThreshold: 0.25,
		},
		Audit: Audit{
			RecordTimeout: 2 * time.Second,
		},
		Worker: Worker{
			QueueSize: 256,
			Workers:   4,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			MetricsAddr:  ":9090",
		},
	}
}

// Load reads configuration from file, layering it over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate ensures config values are usable
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.AuditDir == "" {
		return fmt.Errorf("audit_dir is required")
	}
	if c.Drift.WindowSize <= 0 {
		return fmt.Errorf("drift.window_size must be positive")
	}
	if c.Drift.PSIThreshold <= 0 || c.Drift.KSThreshold <= 0 {
		return fmt.Errorf("drift thresholds must be positive")
	}
	if c.Drift.Bins <= 0 {
		return fmt.Errorf("drift.bins must be positive")
	}
	if c.Fairness.FallbackThreshold <= 0 || c.Fairness.FallbackThreshold > 1 {
		return fmt.Errorf("fairness.fallback_threshold must be in (0,1]")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be positive")
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be positive")
	}
	return nil
}
