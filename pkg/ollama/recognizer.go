// Package ollama recognizes text with a vision model served by a local Ollama
// instance. Models return plain text, so results carry no geometry.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

const (
	DefaultURL     = "http://localhost:11434"
	DefaultModel   = "llava"
	DefaultPrompt  = "Transcribe all of the text in this image exactly as written. Keep line breaks and separate paragraphs with a blank line. Return only the text."
	DefaultTimeout = 300 * time.Second
)

// Config holds the Ollama endpoint and generation settings.
type Config struct {
	URL         string
	Model       string
	Prompt      string
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Recognizer implements recognizers.Recognizer against /api/generate.
type Recognizer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ recognizers.Recognizer = (*Recognizer)(nil)

// New creates an Ollama recognizer, filling unset fields with defaults.
func New(cfg Config) *Recognizer {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Name returns the engine name
func (r *Recognizer) Name() string {
	return "ollama"
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response *string `json:"response"`
	Done     bool    `json:"done"`
}

// Recognize sends the image to the model and returns the cleaned transcription
// as plain text. Ollama reports no confidence, so it is zero.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, progress recognizers.ProgressFunc) (structure.RawResult, error) {
	if len(image) == 0 {
		return structure.RawResult{}, fmt.Errorf("empty image")
	}
	progress.Report(0)

	requestJSON, err := json.Marshal(generateRequest{
		Model:  r.cfg.Model,
		Prompt: r.cfg.Prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
		Options: map[string]any{
			"temperature": r.cfg.Temperature,
		},
	})
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimSuffix(r.cfg.URL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestJSON))
	if err != nil {
		return structure.RawResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	progress.Report(10)
	r.logger.Debug("Sending image to Ollama", "model", r.cfg.Model, "bytes", len(image))

	resp, err := r.client.Do(req)
	if err != nil {
		return structure.RawResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body bytes.Buffer
		_, _ = body.ReadFrom(resp.Body)
		return structure.RawResult{}, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, recognizers.TruncateBody(body.Bytes()))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return structure.RawResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Response == nil {
		return structure.RawResult{}, fmt.Errorf("no response from Ollama")
	}
	progress.Report(90)

	text := recognizers.CleanResponse(*out.Response)
	progress.Report(100)

	return structure.RawResult{Text: text}, nil
}
