// Package config provides configuration loading and management for cordmorph.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for the
		// per-slice morphometry loop
		NumCores int `yaml:"numCores"`

		// AngleCorrection enables de-skewing of each slice using the
		// centerline tangent before measurement
		AngleCorrection bool `yaml:"angleCorrection"`

		// ResampleTarget is the in-plane voxel size in mm to resample
		// to before measurement. Zero means the minimum of the input's
		// in-plane spacings.
		ResampleTarget float64 `yaml:"resampleTarget"`
	} `yaml:"processing"`

	// Centerline fitting parameters
	Centerline struct {
		// Algorithm selects the centerline smoothing method:
		// "polyfit" or "spline"
		Algorithm string `yaml:"algorithm"`

		// Degree is the polynomial degree used by the polyfit algorithm
		Degree int `yaml:"degree"`

		// ControlSpacing is the slice spacing between spline control
		// points used by the spline algorithm
		ControlSpacing int `yaml:"controlSpacing"`
	} `yaml:"centerline"`

	// Output parameters
	Output struct {
		// CSVPath is where the per-slice metrics table is written
		CSVPath string `yaml:"csvPath"`

		// QCDir, when non-empty, receives per-slice PNG renderings of
		// the measured patches for visual review
		QCDir string `yaml:"qcDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.AngleCorrection = true
	cfg.Processing.ResampleTarget = 0

	cfg.Centerline.Algorithm = "polyfit"
	cfg.Centerline.Degree = 5
	cfg.Centerline.ControlSpacing = 5

	cfg.Output.CSVPath = "metrics.csv"
	cfg.Output.QCDir = ""
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
