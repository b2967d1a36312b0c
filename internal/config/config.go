package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"screener/internal/detector"
	"screener/internal/scanner"
)

// Config represents the application configuration
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Scanner   scanner.Config  `yaml:"scanner"`
	Detectors detector.Config `yaml:"detectors"`
	Output    OutputConfig    `yaml:"output"`
}

// ProviderConfig holds data-source settings
type ProviderConfig struct {
	RateLimit int `yaml:"rate_limit"` // requests per minute per endpoint
}

// OutputConfig holds report settings
type OutputConfig struct {
	Dir  string `yaml:"dir"`   // directory for CSV/JSON/Markdown files
	TopN int    `yaml:"top_n"` // combined recommendation list length
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			RateLimit: 300,
		},
		Scanner:   scanner.DefaultConfig(),
		Detectors: detector.DefaultConfig(),
		Output: OutputConfig{
			Dir:  ".",
			TopN: 5,
		},
	}
}

// Load loads configuration from a YAML file layered over the defaults.
// A missing file is not an error; the defaults are used. Environment
// overrides apply last, with or without a config file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		c.Output.Dir = dir
	}
	if workers := os.Getenv("SCANNER_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			c.Scanner.Workers = n
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner workers must be at least 1")
	}
	if c.Scanner.HistoryDays < 60 {
		return fmt.Errorf("history_days must be at least 60 (deepest detector lookback)")
	}
	if c.Provider.RateLimit < 1 {
		return fmt.Errorf("provider rate_limit must be at least 1")
	}
	if c.Output.TopN < 1 {
		return fmt.Errorf("output top_n must be at least 1")
	}
	return nil
}
