package vision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/genproto/googleapis/rpc/status"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

func poly(x0, y0, x1, y1 int32) *visionpb.BoundingPoly {
	return &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

func word(text string, x0, y0, x1, y1 int32, lineBreak bool) *visionpb.Word {
	var symbols []*visionpb.Symbol
	runes := []rune(text)
	for i, r := range runes {
		s := &visionpb.Symbol{Text: string(r)}
		if i == len(runes)-1 && lineBreak {
			s.Property = &visionpb.TextAnnotation_TextProperty{
				DetectedBreak: &visionpb.TextAnnotation_DetectedBreak{Type: visionpb.TextAnnotation_DetectedBreak_LINE_BREAK},
			}
		}
		symbols = append(symbols, s)
	}
	return &visionpb.Word{BoundingBox: poly(x0, y0, x1, y1), Symbols: symbols, Confidence: 0.9}
}

func sampleAnnotation() *visionpb.TextAnnotation {
	return &visionpb.TextAnnotation{
		Text: "Hello world\nagain\n\nBye\n",
		Pages: []*visionpb.Page{{
			Confidence: 0.95,
			Blocks: []*visionpb.Block{
				{
					BoundingBox: poly(0, 0, 100, 40),
					Confidence:  0.9,
					Paragraphs: []*visionpb.Paragraph{{
						BoundingBox: poly(0, 0, 100, 40),
						Confidence:  0.85,
						Words: []*visionpb.Word{
							word("Hello", 0, 0, 40, 15, false),
							word("world", 45, 0, 100, 15, true),
							word("again", 0, 20, 40, 35, true),
						},
					}},
				},
				{
					BoundingBox: poly(0, 80, 40, 95),
					Paragraphs: []*visionpb.Paragraph{{
						BoundingBox: poly(0, 80, 40, 95),
						Words:       []*visionpb.Word{word("Bye", 0, 80, 40, 95, true)},
					}},
				},
			},
		}},
	}
}

func TestRecognize(t *testing.T) {
	var captured *visionpb.BatchAnnotateImagesRequest
	r := New(Config{LanguageHints: []string{"en"}})
	r.annotate = func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		captured = req
		return &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{FullTextAnnotation: sampleAnnotation()}},
		}, nil
	}

	var progress []int
	raw, err := r.Recognize(context.Background(), []byte("png"), func(p int) { progress = append(progress, p) })
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	req := captured.GetRequests()[0]
	if string(req.GetImage().GetContent()) != "png" {
		t.Errorf("image content not forwarded")
	}
	if req.GetFeatures()[0].GetType() != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
		t.Errorf("feature = %v", req.GetFeatures()[0].GetType())
	}
	if hints := req.GetImageContext().GetLanguageHints(); len(hints) != 1 || hints[0] != "en" {
		t.Errorf("language hints = %v", hints)
	}
	if progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", progress)
	}

	if raw.Shape() != structure.ShapeBlocks {
		t.Fatalf("Shape() = %v, want blocks", raw.Shape())
	}
	if raw.Confidence < 94.9 || raw.Confidence > 95.1 {
		t.Errorf("Confidence = %v, want 95", raw.Confidence)
	}

	doc := structure.NewExtractor().Extract(raw, document.Rectangle{X: 10, Y: 10})
	if len(doc.Paragraphs) != 2 {
		t.Fatalf("paragraphs = %d, want 2", len(doc.Paragraphs))
	}
	first := doc.Paragraphs[0]
	if len(first.Lines) != 2 {
		t.Fatalf("first paragraph lines = %d, want 2", len(first.Lines))
	}
	if first.Lines[0].Text != "Hello world" || first.Lines[1].Text != "again" {
		t.Errorf("lines = %q, %q", first.Lines[0].Text, first.Lines[1].Text)
	}
	if want := (document.Rectangle{X: 55, Y: 10, Width: 55, Height: 15}); first.Lines[0].Words[1].BBox != want {
		t.Errorf("word bbox = %+v, want %+v", first.Lines[0].Words[1].BBox, want)
	}
	if doc.Paragraphs[1].ID != "1-0" {
		t.Errorf("second paragraph id = %q, want 1-0", doc.Paragraphs[1].ID)
	}
}

func TestRecognizeErrors(t *testing.T) {
	tests := []struct {
		name          string
		image         []byte
		resp          *visionpb.BatchAnnotateImagesResponse
		err           error
		errorContains string
	}{
		{
			name:          "empty image",
			image:         nil,
			errorContains: "empty image",
		},
		{
			name:          "transport error",
			image:         []byte("png"),
			err:           errors.New("deadline exceeded"),
			errorContains: "vision API request failed",
		},
		{
			name:          "no responses",
			image:         []byte("png"),
			resp:          &visionpb.BatchAnnotateImagesResponse{},
			errorContains: "no response from Vision",
		},
		{
			name:  "per image error",
			image: []byte("png"),
			resp: &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{
				Error: &status.Status{Code: 3, Message: "Bad image data."},
			}}},
			errorContains: "vision API error: 3 - Bad image data.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{})
			r.annotate = func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
				return tt.resp, tt.err
			}

			_, err := r.Recognize(context.Background(), tt.image, nil)
			if err == nil {
				t.Fatal("Recognize() expected error")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("error = %q, want it to contain %q", err, tt.errorContains)
			}
		})
	}
}

func TestConvertEmpty(t *testing.T) {
	raw := convert(nil)
	if raw.Shape() != structure.ShapeEmpty {
		t.Errorf("Shape() = %v, want empty", raw.Shape())
	}
}

func TestName(t *testing.T) {
	if New(Config{}).Name() != "vision" {
		t.Error("unexpected name")
	}
	if err := New(Config{}).Close(); err != nil {
		t.Errorf("Close() without client error = %v", err)
	}
}
