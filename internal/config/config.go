package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/dygy/scorepress/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all pipeline settings, one section per stage plus the
// general and api sections. Zero values are filled by Default before a
// user file is merged on top.
type Config struct {
	General       General       `yaml:"general"`
	Input         Input         `yaml:"input"`
	Transcription Transcription `yaml:"transcription"`
	Refinement    Refinement    `yaml:"refinement"`
	Output        Output        `yaml:"output"`
	API           API           `yaml:"api"`
}

type General struct {
	LogLevel  string `yaml:"log_level"`
	OutputDir string `yaml:"output_dir"`
}

type Input struct {
	TargetSampleRate   int  `yaml:"target_sample_rate"`
	TargetChannels     int  `yaml:"target_channels"`
	NormalizeAudio     bool `yaml:"normalize_audio"`
	DownloadTimeoutSec int  `yaml:"download_timeout_sec"`
}

type Transcription struct {
	OnsetThreshold      float64 `yaml:"onset_threshold"`
	FrameThreshold      float64 `yaml:"frame_threshold"`
	MinimumNoteLength   float64 `yaml:"minimum_note_length"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type Refinement struct {
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model"`
	Style       string  `yaml:"style"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

type Output struct {
	PDFQuality      string `yaml:"pdf_quality"`
	IncludeMetadata bool   `yaml:"include_metadata"`
	MuseScorePath   string `yaml:"musescore_path"`
}

type API struct {
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		General: General{
			LogLevel:  "INFO",
			OutputDir: "./output",
		},
		Input: Input{
			TargetSampleRate:   44100,
			TargetChannels:     1,
			NormalizeAudio:     true,
			DownloadTimeoutSec: 300,
		},
		Transcription: Transcription{
			OnsetThreshold:      0.5,
			FrameThreshold:      0.3,
			MinimumNoteLength:   0.1,
			ConfidenceThreshold: 0.3,
		},
		Refinement: Refinement{
			Enabled:     true,
			Model:       "gpt-4",
			Style:       "general",
			Temperature: 0.3,
			MaxTokens:   4000,
			TimeoutSec:  60,
		},
		Output: Output{
			PDFQuality:      "high",
			IncludeMetadata: true,
		},
	}
}

// Load reads a YAML config file on top of the defaults, applies
// environment overrides, and validates the result. An empty path means
// defaults plus environment only. Unknown keys are rejected so typos fail
// before any stage runs.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read config %s: %v", apperrors.ErrInvalidConfig, path, err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config %s: %v", apperrors.ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.General.LogLevel = v
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		c.General.OutputDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.API.OpenAIAPIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.API.OpenAIBaseURL = v
	}
	if v := os.Getenv("MUSESCORE_PATH"); v != "" {
		c.Output.MuseScorePath = v
	}
	if v := os.Getenv("REFINEMENT_MODEL"); v != "" {
		c.Refinement.Model = v
	}
	if v := os.Getenv("PDF_QUALITY"); v != "" {
		c.Output.PDFQuality = v
	}
}

var validStyles = map[string]bool{
	"piano":   true,
	"guitar":  true,
	"vocal":   true,
	"general": true,
}

// Validate checks every setting and reports the first problem found.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.General.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR":
	default:
		return fmt.Errorf("%w: general.log_level must be DEBUG, INFO, WARNING or ERROR, got %q",
			apperrors.ErrInvalidConfig, c.General.LogLevel)
	}

	if c.General.OutputDir == "" {
		return fmt.Errorf("%w: general.output_dir must not be empty", apperrors.ErrInvalidConfig)
	}

	if c.Input.TargetSampleRate <= 0 {
		return fmt.Errorf("%w: input.target_sample_rate must be positive, got %d",
			apperrors.ErrInvalidConfig, c.Input.TargetSampleRate)
	}
	if c.Input.TargetChannels != 1 && c.Input.TargetChannels != 2 {
		return fmt.Errorf("%w: input.target_channels must be 1 (mono) or 2 (stereo), got %d",
			apperrors.ErrInvalidConfig, c.Input.TargetChannels)
	}

	if c.Transcription.OnsetThreshold < 0 || c.Transcription.OnsetThreshold > 1 {
		return fmt.Errorf("%w: transcription.onset_threshold must be in [0,1], got %s",
			apperrors.ErrInvalidConfig, formatFloat(c.Transcription.OnsetThreshold))
	}
	if c.Transcription.ConfidenceThreshold < 0 || c.Transcription.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: transcription.confidence_threshold must be in [0,1], got %s",
			apperrors.ErrInvalidConfig, formatFloat(c.Transcription.ConfidenceThreshold))
	}

	if !validStyles[c.Refinement.Style] {
		return fmt.Errorf("%w: refinement.style must be piano, guitar, vocal or general, got %q",
			apperrors.ErrInvalidConfig, c.Refinement.Style)
	}
	if c.Refinement.Enabled && c.Refinement.Model == "" {
		return fmt.Errorf("%w: refinement.model must not be empty when refinement is enabled",
			apperrors.ErrInvalidConfig)
	}

	switch c.Output.PDFQuality {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("%w: output.pdf_quality must be low, medium or high, got %q",
			apperrors.ErrInvalidConfig, c.Output.PDFQuality)
	}

	return nil
}

// WriteDefault writes the default configuration as a YAML file.
func WriteDefault(path string) error {
	cfg := Default()
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
