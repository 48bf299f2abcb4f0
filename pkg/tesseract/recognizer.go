// Package tesseract recognizes text with a local Tesseract install through
// gosseract. Building it needs cgo and the Tesseract/Leptonica headers.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// Config holds engine settings.
type Config struct {
	Languages []string
	Layout    structure.Layout
	// PageSegMode is passed to Tesseract when non-zero.
	PageSegMode int
	Logger      *slog.Logger
}

// Recognizer runs Tesseract once per image.
type Recognizer struct {
	config        Config
	clientFactory func() *gosseract.Client
}

// New creates a Tesseract recognizer.
func New(config Config) *Recognizer {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Recognizer{config: config, clientFactory: gosseract.NewClient}
}

// Name returns the engine name
func (r *Recognizer) Name() string {
	return "tesseract"
}

// Recognize runs OCR on image and returns word boxes grouped by the engine's
// block, paragraph and line numbers.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, progress recognizers.ProgressFunc) (structure.RawResult, error) {
	if len(image) == 0 {
		return structure.RawResult{}, fmt.Errorf("empty image")
	}

	client := r.clientFactory()
	defer client.Close()

	progress.Report(0)

	if len(r.config.Languages) > 0 {
		if err := client.SetLanguage(r.config.Languages...); err != nil {
			return structure.RawResult{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if r.config.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(r.config.PageSegMode)); err != nil {
			return structure.RawResult{}, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return structure.RawResult{}, fmt.Errorf("set image: %w", err)
	}
	progress.Report(10)

	if err := ctx.Err(); err != nil {
		return structure.RawResult{}, err
	}
	text, err := client.Text()
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("recognize text: %w", err)
	}
	progress.Report(70)

	if err := ctx.Err(); err != nil {
		return structure.RawResult{}, err
	}
	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("get bounding boxes: %w", err)
	}
	progress.Report(95)

	words := make([]structure.WordBox, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, structure.WordBox{
			Box:        b.Box,
			Text:       b.Word,
			Confidence: b.Confidence,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
		})
	}

	raw := structure.FromWordBoxes(strings.TrimSpace(text), words, r.config.Layout)
	r.config.Logger.Debug("Tesseract recognition finished",
		"words", len(words),
		"layout", r.config.Layout.String(),
		"confidence", raw.Confidence,
	)

	progress.Report(100)
	return raw, nil
}
