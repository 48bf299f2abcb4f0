package structure

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
	"github.com/lehigh-university-libraries/rsvp/pkg/geometry"
	"github.com/lehigh-university-libraries/rsvp/pkg/tokens"
)

const (
	// DefaultGapMultiplier is how many line heights of vertical space start a
	// new paragraph when only lines are available.
	DefaultGapMultiplier = 1.5

	// minLineRunes is the shortest trimmed line text that is not noise.
	minLineRunes = 2
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// Extractor builds documents from raw recognition results.
type Extractor struct {
	GapMultiplier float64
	Logger        *slog.Logger
}

// NewExtractor returns an extractor using the default gap multiplier.
func NewExtractor() *Extractor {
	return &Extractor{GapMultiplier: DefaultGapMultiplier}
}

func (e *Extractor) gapMultiplier() float64 {
	if e == nil || e.GapMultiplier <= 0 {
		return DefaultGapMultiplier
	}
	return e.GapMultiplier
}

func (e *Extractor) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Extract converts raw into a document whose geometry is translated by the
// selection's position. It never fails: missing pieces become zero
// rectangles and empty word lists, and an unusable result becomes a document
// without paragraphs.
func (e *Extractor) Extract(raw RawResult, selection document.Rectangle) document.Document {
	shape := raw.Shape()

	var paragraphs []document.Paragraph
	switch shape {
	case ShapeBlocks:
		paragraphs = fromBlocks(raw.Blocks, selection)
	case ShapeLines:
		paragraphs = fromLines(raw.Lines, raw.Confidence, selection, e.gapMultiplier())
	case ShapeText:
		paragraphs = fromText(raw.Text, raw.Confidence)
	}

	doc := document.Document{
		Paragraphs:           paragraphs,
		FullText:             raw.Text,
		Confidence:           raw.Confidence,
		SelectionCoordinates: selection,
	}

	e.logger().Debug("Extracted document structure",
		"shape", shape.String(),
		"paragraphs", len(doc.Paragraphs),
		"words", doc.WordCount(),
	)

	return doc
}

func fromBlocks(blocks []RawBlock, selection document.Rectangle) []document.Paragraph {
	var paragraphs []document.Paragraph
	for b, block := range blocks {
		for p, para := range block.Paragraphs {
			paragraph := document.Paragraph{
				ID:         strconv.Itoa(b) + "-" + strconv.Itoa(p),
				BBox:       geometry.Normalize(para.BBox, selection),
				Confidence: para.Confidence,
			}
			for l, line := range para.Lines {
				paragraph.Lines = append(paragraph.Lines, buildLine(l, line, selection))
			}
			paragraphs = append(paragraphs, paragraph)
		}
	}
	return paragraphs
}

func buildLine(id int, line RawLine, selection document.Rectangle) document.Line {
	out := document.Line{
		ID:         id,
		BBox:       geometry.Normalize(line.BBox, selection),
		Text:       line.Text,
		Confidence: line.Confidence,
	}
	words := make([]document.Word, 0, len(line.Words))
	for w, word := range line.Words {
		words = append(words, document.Word{
			ID:         strconv.Itoa(w),
			Text:       word.Text,
			BBox:       geometry.Normalize(word.BBox, selection),
			Confidence: word.Confidence,
		})
	}
	out.Words = tokens.RepairAll(words)
	return out
}

// fromLines groups consecutive lines into paragraphs. A vertical gap larger
// than multiplier times the previous line's height starts a new paragraph,
// and so does a noise line (fewer than two characters), which is dropped.
func fromLines(lines []RawLine, confidence float64, selection document.Rectangle, multiplier float64) []document.Paragraph {
	var groups [][]RawLine
	var current []RawLine
	var previous *document.Rectangle

	flush := func() {
		if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
	}

	for _, line := range lines {
		if utf8.RuneCountInString(strings.TrimSpace(line.Text)) < minLineRunes {
			flush()
			previous = nil
			continue
		}

		if line.BBox != nil {
			box := geometry.Normalize(line.BBox, selection)
			if previous != nil && box.Y-previous.Bottom() > multiplier*previous.Height {
				flush()
			}
			previous = &box
		}

		current = append(current, line)
	}
	flush()

	paragraphs := make([]document.Paragraph, 0, len(groups))
	for g, group := range groups {
		paragraph := document.Paragraph{
			ID:         strconv.Itoa(g),
			Confidence: confidence,
		}
		boxes := make([]document.Rectangle, 0, len(group))
		for l, line := range group {
			built := buildLine(l, line, selection)
			boxes = append(boxes, built.BBox)
			paragraph.Lines = append(paragraph.Lines, built)
		}
		paragraph.BBox = geometry.Union(boxes...)
		paragraphs = append(paragraphs, paragraph)
	}
	return paragraphs
}

// fromText splits plain text into paragraphs on blank lines, lines on
// newlines and words on whitespace. There is no geometry.
func fromText(text string, confidence float64) []document.Paragraph {
	var paragraphs []document.Paragraph
	for _, block := range blankLine.Split(text, -1) {
		if strings.TrimSpace(block) == "" {
			continue
		}

		paragraph := document.Paragraph{
			ID:         strconv.Itoa(len(paragraphs)),
			Confidence: confidence,
		}
		for _, raw := range strings.Split(block, "\n") {
			lineText := strings.TrimSpace(raw)
			if lineText == "" {
				continue
			}
			line := document.Line{
				ID:         len(paragraph.Lines),
				Text:       lineText,
				Confidence: confidence,
			}
			fields := strings.Fields(lineText)
			words := make([]document.Word, 0, len(fields))
			for w, field := range fields {
				words = append(words, document.Word{
					ID:         strconv.Itoa(w),
					Text:       field,
					Confidence: confidence,
				})
			}
			line.Words = tokens.RepairAll(words)
			paragraph.Lines = append(paragraph.Lines, line)
		}
		paragraphs = append(paragraphs, paragraph)
	}
	return paragraphs
}
