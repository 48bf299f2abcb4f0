// Package vision recognizes text with Google Cloud Vision document text
// detection.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/rsvp/pkg/geometry"
	"github.com/lehigh-university-libraries/rsvp/pkg/recognizers"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// Config holds engine settings. Credentials come from CredentialsFile when
// set, otherwise from Application Default Credentials.
type Config struct {
	CredentialsFile string
	LanguageHints   []string
	Logger          *slog.Logger
}

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// Recognizer sends images to the Vision API. The client is created on first
// use.
type Recognizer struct {
	config Config

	mu       sync.Mutex
	annotate annotateFunc
	client   *vision.ImageAnnotatorClient
}

// New creates a Vision recognizer.
func New(config Config) *Recognizer {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Recognizer{config: config}
}

// Name returns the engine name
func (r *Recognizer) Name() string {
	return "vision"
}

// Close releases the API client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.annotate = nil
	return err
}

func (r *Recognizer) annotator(ctx context.Context) (annotateFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.annotate != nil {
		return r.annotate, nil
	}

	var opts []option.ClientOption
	if r.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(r.config.CredentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision client: %w", err)
	}
	r.client = client
	r.annotate = func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}
	return r.annotate, nil
}

// Recognize runs document text detection on image.
func (r *Recognizer) Recognize(ctx context.Context, image []byte, progress recognizers.ProgressFunc) (structure.RawResult, error) {
	if len(image) == 0 {
		return structure.RawResult{}, errors.New("empty image")
	}

	annotate, err := r.annotator(ctx)
	if err != nil {
		return structure.RawResult{}, err
	}
	progress.Report(10)

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	if len(r.config.LanguageHints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: r.config.LanguageHints}
	}

	resp, err := annotate(ctx, req)
	if err != nil {
		return structure.RawResult{}, fmt.Errorf("vision API request failed: %w", err)
	}
	progress.Report(80)

	responses := resp.GetResponses()
	if len(responses) == 0 {
		return structure.RawResult{}, errors.New("no response from Vision")
	}
	if status := responses[0].GetError(); status != nil && status.GetCode() != 0 {
		return structure.RawResult{}, fmt.Errorf("vision API error: %d - %s", status.GetCode(), status.GetMessage())
	}

	raw := convert(responses[0].GetFullTextAnnotation())
	r.config.Logger.Debug("Vision recognition finished",
		"blocks", len(raw.Blocks),
		"confidence", raw.Confidence,
	)

	progress.Report(100)
	return raw, nil
}

// convert maps Vision's pages, blocks and paragraphs onto the blocks shape.
// Words of each paragraph are split into lines. Confidences are scaled from
// 0..1 to 0..100; the overall confidence is the mean page confidence.
func convert(annotation *visionpb.TextAnnotation) structure.RawResult {
	raw := structure.RawResult{Text: strings.TrimSpace(annotation.GetText())}

	var pageConfidence float64
	pages := annotation.GetPages()
	for _, page := range pages {
		pageConfidence += float64(page.GetConfidence()) * 100

		for _, block := range page.GetBlocks() {
			rawBlock := structure.RawBlock{
				BBox:       polyBox(block.GetBoundingBox()),
				Confidence: float64(block.GetConfidence()) * 100,
			}
			for _, para := range block.GetParagraphs() {
				rawPara := structure.RawParagraph{
					BBox:       polyBox(para.GetBoundingBox()),
					Confidence: float64(para.GetConfidence()) * 100,
				}
				for _, line := range groupWordsIntoLines(paragraphWords(para)) {
					rawPara.Lines = append(rawPara.Lines, line.rawLine())
				}
				rawBlock.Paragraphs = append(rawBlock.Paragraphs, rawPara)
			}
			raw.Blocks = append(raw.Blocks, rawBlock)
		}
	}
	if len(pages) > 0 {
		raw.Confidence = pageConfidence / float64(len(pages))
	}

	return raw
}

func paragraphWords(para *visionpb.Paragraph) []wordBox {
	var words []wordBox
	for _, word := range para.GetWords() {
		var text strings.Builder
		endsLine := false
		for _, symbol := range word.GetSymbols() {
			text.WriteString(symbol.GetText())
			switch symbol.GetProperty().GetDetectedBreak().GetType() {
			case visionpb.TextAnnotation_DetectedBreak_LINE_BREAK,
				visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE:
				endsLine = true
			}
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}

		x, y, w, h := polyRect(word.GetBoundingBox())
		words = append(words, wordBox{
			X:          x,
			Y:          y,
			Width:      w,
			Height:     h,
			Text:       text.String(),
			Confidence: float64(word.GetConfidence()) * 100,
			EndsLine:   endsLine,
		})
	}
	return words
}

// polyRect returns the axis-aligned rectangle around a polygon.
func polyRect(poly *visionpb.BoundingPoly) (x, y, w, h int) {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := int(vertices[0].GetX()), int(vertices[0].GetY())
	maxX, maxY := minX, minY
	for _, v := range vertices[1:] {
		minX = min(minX, int(v.GetX()))
		minY = min(minY, int(v.GetY()))
		maxX = max(maxX, int(v.GetX()))
		maxY = max(maxY, int(v.GetY()))
	}
	return minX, minY, maxX - minX, maxY - minY
}

func polyBox(poly *visionpb.BoundingPoly) *geometry.RawBox {
	if len(poly.GetVertices()) == 0 {
		return nil
	}
	x, y, w, h := polyRect(poly)
	return geometry.Box(float64(x), float64(y), float64(w), float64(h))
}
