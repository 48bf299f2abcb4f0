// Package openai recognizes text through an OpenAI-compatible chat
// completions endpoint with image input.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

const (
	DefaultURL     = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
	DefaultPrompt  = "Transcribe all of the text in this image exactly as written. Keep line breaks and separate paragraphs with a blank line. Return only the text."
	DefaultTimeout = 120 * time.Second
)

// Config holds the endpoint and generation settings. The API key comes from
// OPENAI_API_KEY when APIKey is empty.
type Config struct {
	URL         string
	APIKey      string
	Model       string
	Prompt      string
	Temperature float64
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Recognizer implements recognizers.Recognizer
type Recognizer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ recognizers.Recognizer = (*Recognizer)(nil)

// Response represents an OpenAI API response
type Response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TemplateData represents data for API request template
type TemplateData struct {
	Model       string
	Prompt      string
	Temperature float64
	ImageBase64 string
	MimeType    string
}

var requestTemplate = template.Must(template.New("openai").Parse(`{
  "model": "{{.Model}}",
  "temperature": {{.Temperature}},
  "messages": [
    {
      "role": "user",
      "content": [
        {
          "type": "text",
          "text": "{{.Prompt}}"
        },
        {
          "type": "image_url",
          "image_url": {
            "url": "data:{{.MimeType}};base64,{{.ImageBase64}}"
          }
        }
      ]
    }
  ]
}`))

// New creates a recognizer, filling unset fields with defaults.
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
	return "openai"
}

func (r *Recognizer) apiKey() string {
	if r.cfg.APIKey != "" {
		return r.cfg.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Recognize sends the image to the model and returns its transcription as
// plain text without confidence.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, progress recognizers.ProgressFunc) (structure.RawResult, error) {
	if len(image) == 0 {
		return structure.RawResult{}, fmt.Errorf("empty image")
	}
	apiKey := r.apiKey()
	if apiKey == "" {
		return structure.RawResult{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	progress.Report(0)

	var requestBuffer bytes.Buffer
	err := requestTemplate.Execute(&requestBuffer, TemplateData{
		Model:       jsonEscape(r.cfg.Model),
		Prompt:      jsonEscape(r.cfg.Prompt),
		Temperature: r.cfg.Temperature,
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		MimeType:    http.DetectContentType(image),
	})
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("failed to execute template: %w", err)
	}

	url := strings.TrimSuffix(r.cfg.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &requestBuffer)
	if err != nil {
		return structure.RawResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	progress.Report(10)
	resp, err := r.client.Do(req)
	if err != nil {
		return structure.RawResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return structure.RawResult{}, fmt.Errorf("openAI API error: %d - %s", resp.StatusCode, recognizers.TruncateBody(body))
	}

	var openaiResp Response
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return structure.RawResult{}, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, recognizers.TruncateBody(body))
	}
	if len(openaiResp.Choices) == 0 {
		return structure.RawResult{}, fmt.Errorf("no response from OpenAI - body: %s", recognizers.TruncateBody(body))
	}

	r.logger.Debug("OpenAI transcription complete",
		"model", r.cfg.Model,
		"input_tokens", openaiResp.Usage.PromptTokens,
		"output_tokens", openaiResp.Usage.CompletionTokens,
	)
	progress.Report(100)

	return structure.RawResult{Text: recognizers.CleanResponse(openaiResp.Choices[0].Message.Content)}, nil
}

// jsonEscape properly escapes a string for use in JSON
func jsonEscape(s string) string {
	escaped, _ := json.Marshal(s)
	// Remove the surrounding quotes that json.Marshal adds
	return string(escaped[1 : len(escaped)-1])
}
