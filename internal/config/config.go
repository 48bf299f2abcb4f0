// Package config loads reader settings from a YAML or TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/rsvp/pkg/playback"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

const (
	DefaultEngine        = "tesseract"
	DefaultSubjectPrefix = "rsvp.events"
)

type Config struct {
	WPM              int     `yaml:"wpm" toml:"wpm"`
	GapMultiplier    float64 `yaml:"gap_multiplier" toml:"gap_multiplier"`
	MinSelectionSize float64 `yaml:"min_selection_size" toml:"min_selection_size"`
	Engine           string  `yaml:"engine" toml:"engine"`

	Capture   CaptureSettings   `yaml:"capture" toml:"capture"`
	Tesseract TesseractSettings `yaml:"tesseract" toml:"tesseract"`
	Vision    VisionSettings    `yaml:"vision" toml:"vision"`
	Ollama    OllamaSettings    `yaml:"ollama" toml:"ollama"`
	OpenAI    OpenAISettings    `yaml:"openai" toml:"openai"`
	NATS      NATSSettings      `yaml:"nats" toml:"nats"`
}

type CaptureSettings struct {
	// Path is the screenshot regions are cut from.
	Path        string  `yaml:"path" toml:"path"`
	ScaleFactor float64 `yaml:"scale_factor" toml:"scale_factor"`
}

type TesseractSettings struct {
	Languages   []string `yaml:"languages" toml:"languages"`
	Layout      string   `yaml:"layout" toml:"layout"`
	PageSegMode int      `yaml:"page_seg_mode" toml:"page_seg_mode"`
}

type VisionSettings struct {
	CredentialsFile string   `yaml:"credentials_file" toml:"credentials_file"`
	LanguageHints   []string `yaml:"language_hints" toml:"language_hints"`
}

type OllamaSettings struct {
	URL            string  `yaml:"url" toml:"url"`
	Model          string  `yaml:"model" toml:"model"`
	Prompt         string  `yaml:"prompt" toml:"prompt"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// OpenAISettings configures any OpenAI-compatible endpoint. The API key is
// only read from OPENAI_API_KEY.
type OpenAISettings struct {
	URL            string  `yaml:"url" toml:"url"`
	Model          string  `yaml:"model" toml:"model"`
	Prompt         string  `yaml:"prompt" toml:"prompt"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// NATSSettings enables event publishing when URL is set.
type NATSSettings struct {
	URL           string `yaml:"url" toml:"url"`
	SubjectPrefix string `yaml:"subject_prefix" toml:"subject_prefix"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		WPM:              playback.DefaultWPM,
		GapMultiplier:    structure.DefaultGapMultiplier,
		MinSelectionSize: 10,
		Engine:           DefaultEngine,
		Capture:          CaptureSettings{ScaleFactor: 1},
		Tesseract: TesseractSettings{
			Languages: []string{"eng"},
			Layout:    structure.LayoutBlocks.String(),
		},
		NATS: NATSSettings{SubjectPrefix: DefaultSubjectPrefix},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file. The
// format is chosen by extension: .toml is TOML, anything else YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to decode TOML configuration: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to decode YAML configuration: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RSVP_WPM"); v != "" {
		wpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RSVP_WPM %q: %w", v, err)
		}
		c.WPM = wpm
	}
	if v := os.Getenv("RSVP_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.URL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.WPM < playback.MinWPM || c.WPM > playback.MaxWPM {
		errs = append(errs, fmt.Errorf("wpm must be between %d and %d, got %d", playback.MinWPM, playback.MaxWPM, c.WPM))
	}
	if c.GapMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("gap_multiplier must be positive, got %v", c.GapMultiplier))
	}
	if c.MinSelectionSize < 0 {
		errs = append(errs, fmt.Errorf("min_selection_size must not be negative, got %v", c.MinSelectionSize))
	}
	if c.Capture.ScaleFactor < 0 {
		errs = append(errs, fmt.Errorf("capture.scale_factor must not be negative, got %v", c.Capture.ScaleFactor))
	}
	if strings.TrimSpace(c.Engine) == "" {
		errs = append(errs, errors.New("engine is required"))
	}
	if _, err := structure.ParseLayout(c.Tesseract.Layout); err != nil {
		errs = append(errs, fmt.Errorf("tesseract.layout: %w", err))
	}
	if c.Ollama.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("ollama.timeout_seconds must not be negative, got %d", c.Ollama.TimeoutSeconds))
	}
	if c.OpenAI.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("openai.timeout_seconds must not be negative, got %d", c.OpenAI.TimeoutSeconds))
	}
	return errors.Join(errs...)
}

// TesseractLayout returns the parsed layout. Validate has already checked it.
func (c *Config) TesseractLayout() structure.Layout {
	layout, _ := structure.ParseLayout(c.Tesseract.Layout)
	return layout
}

// OllamaTimeout converts the configured timeout, zero meaning the engine default.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSeconds) * time.Second
}

func (c *Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}
