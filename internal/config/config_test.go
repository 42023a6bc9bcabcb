package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Workbench.Command != "wb_command" {
		t.Errorf("Expected default workbench command wb_command, got %q", cfg.Workbench.Command)
	}
	if cfg.Output.Delimiter != "," {
		t.Errorf("Expected default delimiter \",\", got %q", cfg.Output.Delimiter)
	}
	if cfg.Output.Suffix != "_meants" {
		t.Errorf("Expected default suffix _meants, got %q", cfg.Output.Suffix)
	}
	if !cfg.Output.Verbose {
		t.Error("Expected verbose to default to true")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file returned error: %v", err)
	}

	if cfg.Workbench.Command != "wb_command" {
		t.Errorf("Expected defaults for missing file, got command %q", cfg.Workbench.Command)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meants.yaml")
	body := []byte("workbench:\n  command: /opt/workbench/bin/wb_command\noutput:\n  delimiter: \"\\t\"\n")
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Workbench.Command != "/opt/workbench/bin/wb_command" {
		t.Errorf("Expected overridden command, got %q", cfg.Workbench.Command)
	}
	if cfg.Output.Delimiter != "\t" {
		t.Errorf("Expected tab delimiter, got %q", cfg.Output.Delimiter)
	}
	// Unset keys keep their defaults.
	if cfg.Output.Suffix != "_meants" {
		t.Errorf("Expected suffix default to survive partial config, got %q", cfg.Output.Suffix)
	}
}

func TestLoadRejectsEmptyDelimiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meants.yaml")
	body := []byte("output:\n  delimiter: \"\"\n")
	if err := os.WriteFile(path, body, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for empty delimiter, got nil")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meants.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}
