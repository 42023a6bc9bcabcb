// Package config loads tool configuration from a YAML file and provides
// default values when no file is present.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tool settings loaded from YAML.
type Config struct {
	Workbench struct {
		// Command is the Connectome Workbench binary used for CIFTI
		// manipulation. May be a bare name resolved through PATH.
		Command string `yaml:"command"`
	} `yaml:"workbench"`

	Output struct {
		// Delimiter separates values in the output table.
		Delimiter string `yaml:"delimiter"`

		// Suffix is appended to the functional image base name when no
		// --outputcsv is given.
		Suffix string `yaml:"suffix"`

		// Verbose controls progress printing.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Workbench.Command = "wb_command"
	cfg.Output.Delimiter = ","
	cfg.Output.Suffix = "_meants"
	cfg.Output.Verbose = true
	return cfg
}

// Load reads configuration from path. A missing file is not an error; the
// defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Workbench.Command == "" {
		return nil, fmt.Errorf("config: workbench.command must not be empty")
	}
	if cfg.Output.Delimiter == "" {
		return nil, fmt.Errorf("config: output.delimiter must not be empty")
	}

	return cfg, nil
}
