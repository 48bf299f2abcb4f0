package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/rsvp/internal/config"
	"github.com/lehigh-university-libraries/rsvp/pkg/ollama"
	"github.com/lehigh-university-libraries/rsvp/pkg/openai"
	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/tesseract"
	"github.com/lehigh-university-libraries/rsvp/pkg/vision"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the available OCR engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := newRegistry(cfg, slog.Default())
		defer closeRecognizers(registry)
		return listEngines(cmd.OutOrStdout(), registry, cfg.Engine)
	},
}

func init() {
	RootCmd.AddCommand(enginesCmd)
}

// newRegistry registers every engine with its configured settings. Engines
// connect lazily, so registering one that is not installed is harmless.
func newRegistry(c *config.Config, logger *slog.Logger) *recognizers.Registry {
	registry := recognizers.NewRegistry()
	registry.Register(tesseract.New(tesseract.Config{
		Languages:   c.Tesseract.Languages,
		Layout:      c.TesseractLayout(),
		PageSegMode: c.Tesseract.PageSegMode,
		Logger:      logger,
	}))
	registry.Register(vision.New(vision.Config{
		CredentialsFile: c.Vision.CredentialsFile,
		LanguageHints:   c.Vision.LanguageHints,
		Logger:          logger,
	}))
	registry.Register(ollama.New(ollama.Config{
		URL:         c.Ollama.URL,
		Model:       c.Ollama.Model,
		Prompt:      c.Ollama.Prompt,
		Temperature: c.Ollama.Temperature,
		Timeout:     c.OllamaTimeout(),
		Logger:      logger,
	}))
	registry.Register(openai.New(openai.Config{
		URL:         c.OpenAI.URL,
		Model:       c.OpenAI.Model,
		Prompt:      c.OpenAI.Prompt,
		Temperature: c.OpenAI.Temperature,
		Timeout:     c.OpenAITimeout(),
		Logger:      logger,
	}))
	return registry
}

func closeRecognizers(registry *recognizers.Registry) {
	for _, name := range registry.List() {
		r, err := registry.Get(name)
		if err != nil {
			continue
		}
		if closer, ok := r.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("Failed to close engine", "engine", name, "error", err)
			}
		}
	}
}

func listEngines(w io.Writer, registry *recognizers.Registry, selected string) error {
	for _, name := range registry.List() {
		marker := " "
		if name == selected {
			marker = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %s\n", marker, name); err != nil {
			return err
		}
	}
	return nil
}
