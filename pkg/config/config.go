// Package config provides configuration loading and management for medaug.
// It loads a YAML file, applies MEDAUG__ environment overrides and provides
// default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"medaug/pkg/logging"
	"medaug/pkg/pipeline"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// MEDAUG__TRANSFORM__MODE=eval. Nested keys are separated by "__"; single
// underscores inside a key are ignored, so MEDAUG__OUTPUT__SAVE_OVERLAYS
// sets output.saveOverlays.
const EnvPrefix = "MEDAUG__"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Transform parameters
	Transform struct {
		// OutputSize is a square output side; used when OutputHeight and
		// OutputWidth are both zero
		OutputSize int `yaml:"outputSize" koanf:"outputsize"`

		// OutputHeight and OutputWidth give a non-square output size
		OutputHeight int `yaml:"outputHeight" koanf:"outputheight"`
		OutputWidth  int `yaml:"outputWidth" koanf:"outputwidth"`

		// ROIErrorRange is the margin added around each bounding box
		ROIErrorRange int `yaml:"roiErrorRange" koanf:"roierrorrange"`

		// Mode is train or eval
		Mode string `yaml:"mode" koanf:"mode"`

		// UseROI requires a bounding box per sample and crops to it
		UseROI bool `yaml:"useROI" koanf:"useroi"`
	} `yaml:"transform" koanf:"transform"`

	// Processing parameters
	Processing struct {
		// NumWorkers is how many samples are augmented concurrently
		NumWorkers int `yaml:"numWorkers" koanf:"numworkers"`

		// Copies is how many augmented versions to produce per sample
		Copies int `yaml:"copies" koanf:"copies"`

		// Seed makes runs reproducible; 0 draws a fresh seed
		Seed uint64 `yaml:"seed" koanf:"seed"`
	} `yaml:"processing" koanf:"processing"`

	// Output parameters
	Output struct {
		// Dir is where previews are written
		Dir string `yaml:"dir" koanf:"dir"`

		// SaveOverlays also writes label overlays next to each slice
		SaveOverlays bool `yaml:"saveOverlays" koanf:"saveoverlays"`
	} `yaml:"output" koanf:"output"`

	// Logging parameters
	Logging struct {
		Level string `yaml:"level" koanf:"level"`
		JSON  bool   `yaml:"json" koanf:"json"`
	} `yaml:"logging" koanf:"logging"`

	// Metrics parameters
	Metrics struct {
		// Addr is the listen address for /metrics; empty disables it
		Addr string `yaml:"addr" koanf:"addr"`
	} `yaml:"metrics" koanf:"metrics"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Transform.OutputSize = 256
	cfg.Transform.ROIErrorRange = 0
	cfg.Transform.Mode = string(pipeline.ModeTrain)
	cfg.Transform.UseROI = true

	cfg.Processing.NumWorkers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Copies = 1

	cfg.Output.Dir = "augmented"
	cfg.Output.SaveOverlays = true

	cfg.Logging.Level = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file and then applies
// environment overrides. A missing file yields the defaults plus overrides.
func LoadConfig(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), kyaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// envKey maps MEDAUG__OUTPUT__SAVE_OVERLAYS to output.saveoverlays.
func envKey(s string) string {
	s = s[len(EnvPrefix):]
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if i+1 < len(s) && s[i] == '_' && s[i+1] == '_' {
			out = append(out, '.')
			i++
			continue
		}
		if s[i] == '_' {
			continue
		}
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// OutputSize resolves the configured output size.
func (c *Config) OutputSize() pipeline.OutputSize {
	if c.Transform.OutputHeight > 0 || c.Transform.OutputWidth > 0 {
		return pipeline.OutputSize{Height: c.Transform.OutputHeight, Width: c.Transform.OutputWidth}
	}
	return pipeline.Square(c.Transform.OutputSize)
}

// TransformOptions converts the transform section into validated pipeline
// options.
func (c *Config) TransformOptions() (pipeline.Options, error) {
	mode, err := pipeline.ParseMode(c.Transform.Mode)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		OutputSize:    c.OutputSize(),
		ROIErrorRange: c.Transform.ROIErrorRange,
		Mode:          mode,
		UseROI:        c.Transform.UseROI,
	}
	if err := opts.Validate(); err != nil {
		return pipeline.Options{}, err
	}
	return opts, nil
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, JSON: c.Logging.JSON}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.TransformOptions(); err != nil {
		return err
	}
	if c.Processing.NumWorkers < 1 {
		return fmt.Errorf("processing.numWorkers must be at least 1, got %d", c.Processing.NumWorkers)
	}
	if c.Processing.Copies < 1 {
		return fmt.Errorf("processing.copies must be at least 1, got %d", c.Processing.Copies)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}
