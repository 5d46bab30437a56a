package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/dygy/scorepress/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Input.TargetSampleRate != 44100 {
		t.Errorf("expected 44100 sample rate, got %d", cfg.Input.TargetSampleRate)
	}
	if cfg.Refinement.Style != "general" {
		t.Errorf("expected general style, got %q", cfg.Refinement.Style)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `general:
  log_level: DEBUG
  output_dir: /tmp/scores
transcription:
  onset_threshold: 0.7
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.General.LogLevel != "DEBUG" {
		t.Errorf("log level not merged, got %q", cfg.General.LogLevel)
	}
	if cfg.Transcription.OnsetThreshold != 0.7 {
		t.Errorf("onset threshold not merged, got %g", cfg.Transcription.OnsetThreshold)
	}
	// Untouched sections keep defaults.
	if cfg.Input.TargetSampleRate != 44100 {
		t.Errorf("defaults lost, sample rate %d", cfg.Input.TargetSampleRate)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `general:
  log_levle: DEBUG
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for unknown key, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, apperrors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.General.LogLevel = "LOUD" }},
		{"empty output dir", func(c *Config) { c.General.OutputDir = "" }},
		{"zero sample rate", func(c *Config) { c.Input.TargetSampleRate = 0 }},
		{"bad channels", func(c *Config) { c.Input.TargetChannels = 5 }},
		{"onset out of range", func(c *Config) { c.Transcription.OnsetThreshold = 1.5 }},
		{"negative confidence", func(c *Config) { c.Transcription.ConfidenceThreshold = -0.1 }},
		{"bad style", func(c *Config) { c.Refinement.Style = "trumpet" }},
		{"empty model", func(c *Config) { c.Refinement.Enabled = true; c.Refinement.Model = "" }},
		{"bad pdf quality", func(c *Config) { c.Output.PDFQuality = "ultra" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, apperrors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OUTPUT_DIR", "/tmp/env-scores")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.OpenAIAPIKey != "sk-test" {
		t.Errorf("api key override not applied")
	}
	if cfg.General.OutputDir != "/tmp/env-scores" {
		t.Errorf("output dir override not applied, got %q", cfg.General.OutputDir)
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load written default: %v", err)
	}
	if cfg.Output.PDFQuality != "high" {
		t.Errorf("round trip lost pdf quality, got %q", cfg.Output.PDFQuality)
	}
}
