package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RSVP_WPM", "RSVP_ENGINE", "OLLAMA_URL", "OLLAMA_MODEL", "OPENAI_BASE_URL", "NATS_URL"} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.WPM != 300 {
		t.Errorf("WPM = %d, want 300", cfg.WPM)
	}
	if cfg.GapMultiplier != 1.5 {
		t.Errorf("GapMultiplier = %v, want 1.5", cfg.GapMultiplier)
	}
	if cfg.MinSelectionSize != 10 {
		t.Errorf("MinSelectionSize = %v, want 10", cfg.MinSelectionSize)
	}
	if cfg.Engine != DefaultEngine {
		t.Errorf("Engine = %q, want %q", cfg.Engine, DefaultEngine)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadNoFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "rsvp.yaml",
			content: `wpm: 450
gap_multiplier: 2
engine: vision
capture:
  path: shot.png
  scale_factor: 2
tesseract:
  languages: [eng, deu]
  layout: lines
vision:
  credentials_file: key.json
  language_hints: [en]
ollama:
  model: moondream
  timeout_seconds: 30
openai:
  url: http://localhost:8000/v1
  model: qwen2-vl
nats:
  url: nats://localhost:4222
`,
		},
		{
			name: "toml",
			file: "rsvp.toml",
			content: `wpm = 450
gap_multiplier = 2.0
engine = "vision"

[capture]
path = "shot.png"
scale_factor = 2.0

[tesseract]
languages = ["eng", "deu"]
layout = "lines"

[vision]
credentials_file = "key.json"
language_hints = ["en"]

[ollama]
model = "moondream"
timeout_seconds = 30

[openai]
url = "http://localhost:8000/v1"
model = "qwen2-vl"

[nats]
url = "nats://localhost:4222"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if cfg.WPM != 450 || cfg.GapMultiplier != 2 || cfg.Engine != "vision" {
				t.Errorf("top level = %d %v %q", cfg.WPM, cfg.GapMultiplier, cfg.Engine)
			}
			if cfg.Capture.Path != "shot.png" || cfg.Capture.ScaleFactor != 2 {
				t.Errorf("Capture = %+v", cfg.Capture)
			}
			if !reflect.DeepEqual(cfg.Tesseract.Languages, []string{"eng", "deu"}) {
				t.Errorf("Tesseract.Languages = %v", cfg.Tesseract.Languages)
			}
			if cfg.TesseractLayout() != structure.LayoutLines {
				t.Errorf("TesseractLayout() = %v, want lines", cfg.TesseractLayout())
			}
			if cfg.Vision.CredentialsFile != "key.json" || !reflect.DeepEqual(cfg.Vision.LanguageHints, []string{"en"}) {
				t.Errorf("Vision = %+v", cfg.Vision)
			}
			if cfg.Ollama.Model != "moondream" || cfg.OllamaTimeout() != 30*time.Second {
				t.Errorf("Ollama = %+v", cfg.Ollama)
			}
			if cfg.OpenAI.URL != "http://localhost:8000/v1" || cfg.OpenAI.Model != "qwen2-vl" || cfg.OpenAITimeout() != 0 {
				t.Errorf("OpenAI = %+v", cfg.OpenAI)
			}
			if cfg.NATS.URL != "nats://localhost:4222" {
				t.Errorf("NATS.URL = %q", cfg.NATS.URL)
			}
			// unset keys keep their defaults
			if cfg.MinSelectionSize != 10 || cfg.NATS.SubjectPrefix != DefaultSubjectPrefix {
				t.Errorf("defaults lost: %v %q", cfg.MinSelectionSize, cfg.NATS.SubjectPrefix)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RSVP_WPM", "200")
	t.Setenv("RSVP_ENGINE", "ollama")
	t.Setenv("OLLAMA_URL", "http://gpu:11434")
	t.Setenv("OLLAMA_MODEL", "llava:13b")
	t.Setenv("OPENAI_BASE_URL", "http://vllm:8000/v1")
	t.Setenv("NATS_URL", "nats://events:4222")

	cfg, err := Load(writeFile(t, "rsvp.yml", "wpm: 500\nengine: vision\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WPM != 200 {
		t.Errorf("WPM = %d, want 200", cfg.WPM)
	}
	if cfg.Engine != "ollama" {
		t.Errorf("Engine = %q, want ollama", cfg.Engine)
	}
	if cfg.Ollama.URL != "http://gpu:11434" || cfg.Ollama.Model != "llava:13b" {
		t.Errorf("Ollama = %+v", cfg.Ollama)
	}
	if cfg.OpenAI.URL != "http://vllm:8000/v1" {
		t.Errorf("OpenAI.URL = %q", cfg.OpenAI.URL)
	}
	if cfg.NATS.URL != "nats://events:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		content       string
		env           string
		errorContains string
	}{
		{"bad yaml", "rsvp.yaml", "wpm: [", "", "failed to decode YAML"},
		{"bad toml", "rsvp.toml", "wpm = ", "", "failed to decode TOML"},
		{"bad env wpm", "rsvp.yaml", "", "fast", "invalid RSVP_WPM"},
		{"wpm too low", "rsvp.yaml", "wpm: 50", "", "wpm must be between 100 and 600"},
		{"bad layout", "rsvp.yaml", "tesseract:\n  layout: columns", "", "tesseract.layout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.env != "" {
				t.Setenv("RSVP_WPM", tt.env)
			}
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain %q, got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.WPM = 0
	cfg.GapMultiplier = 0
	cfg.Engine = " "

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"wpm", "gap_multiplier", "engine is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error %q missing %q", err, want)
		}
	}
}
