package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/rsvp/pkg/capture"
	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/hocr"
	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Recognize a region of an image and print its document structure",
	Long: `Recognize a region of a screenshot and print the resulting document.

The output is the normalized paragraph/line/word structure the reader plays,
as YAML, JSON or hOCR. Pass --raw to print the engine's result before
normalization instead.`,
	RunE: runExtract,
}

var (
	extractSource sourceFlags
	extractFormat string
	extractRaw    bool
	extractOutput string
)

func init() {
	RootCmd.AddCommand(extractCmd)

	extractSource.register(extractCmd)
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "yaml", "Output format: yaml, json, hocr")
	extractCmd.Flags().BoolVar(&extractRaw, "raw", false, "Print the engine result before normalization")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output path (prints to stdout if not specified)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	img, err := extractSource.capturer(cfg, logger)
	if err != nil {
		return err
	}
	selection, err := extractSource.selection(img)
	if err != nil {
		return err
	}

	registry := newRegistry(cfg, logger)
	defer closeRecognizers(registry)

	name := extractSource.engineName(cfg)
	recognizer, err := registry.Get(name)
	if err != nil {
		return err
	}

	slog.Info("Extracting document", "image", img.Path, "engine", name, "selection", selection)

	extractor := &structure.Extractor{GapMultiplier: cfg.GapMultiplier, Logger: logger}
	raw, doc, err := extract(cmd.Context(), img, recognizer, extractor, selection)
	if err != nil {
		return err
	}

	var out []byte
	if extractRaw {
		out, err = renderRaw(raw, extractFormat)
	} else {
		out, err = renderDocument(doc, extractFormat)
	}
	if err != nil {
		return err
	}

	if extractOutput == "" {
		_, err = cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(extractOutput, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("Document written", "output", extractOutput, "paragraphs", len(doc.Paragraphs), "words", doc.WordCount())
	return nil
}

// extract runs capture, recognition and structure extraction once.
func extract(ctx context.Context, c capture.Capturer, r recognizers.Recognizer, e *structure.Extractor, selection document.Rectangle) (structure.RawResult, document.Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	image, err := c.Capture(ctx, selection)
	if err != nil {
		return structure.RawResult{}, document.Document{}, fmt.Errorf("capture failed: %w", err)
	}

	raw, err := r.Recognize(ctx, image, func(percent int) {
		slog.Debug("Recognition progress", "engine", r.Name(), "percent", percent)
	})
	if err != nil {
		return structure.RawResult{}, document.Document{}, fmt.Errorf("%s recognition failed: %w", r.Name(), err)
	}

	return raw, e.Extract(raw, selection), nil
}

func renderDocument(doc document.Document, format string) ([]byte, error) {
	if strings.EqualFold(format, "hocr") {
		return []byte(hocr.FromDocument(doc) + "\n"), nil
	}
	return encode(doc, format)
}

func renderRaw(raw structure.RawResult, format string) ([]byte, error) {
	if strings.EqualFold(format, "hocr") {
		return nil, fmt.Errorf("raw results cannot be rendered as hocr")
	}
	return encode(raw, format)
}

func encode(v any, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	case "json":
		if err := writeJSON(&buf, v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q (want yaml, json or hocr)", format)
	}
	return buf.Bytes(), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}
