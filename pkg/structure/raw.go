// Package structure turns raw recognition results into documents.
package structure

import (
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/geometry"
)

// Shape identifies which part of a RawResult carries the recognized text.
type Shape int

const (
	// ShapeEmpty means the result carries nothing usable.
	ShapeEmpty Shape = iota
	// ShapeBlocks is a blocks → paragraphs → lines → words hierarchy.
	ShapeBlocks
	// ShapeLines is a flat, ordered sequence of lines.
	ShapeLines
	// ShapeText is a single plain-text blob.
	ShapeText
)

func (s Shape) String() string {
	switch s {
	case ShapeBlocks:
		return "blocks"
	case ShapeLines:
		return "lines"
	case ShapeText:
		return "text"
	default:
		return "empty"
	}
}

// RawResult is the recognizer output before normalization. The JSON layout
// follows the one Tesseract.js emits, so recorded engine dumps can be read
// back directly.
type RawResult struct {
	Text       string     `json:"text" yaml:"text"`
	Confidence float64    `json:"confidence" yaml:"confidence"`
	Blocks     []RawBlock `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Lines      []RawLine  `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// RawBlock groups paragraphs.
type RawBlock struct {
	BBox       *geometry.RawBox `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Paragraphs []RawParagraph   `json:"paragraphs,omitempty" yaml:"paragraphs,omitempty"`
}

// RawParagraph groups lines.
type RawParagraph struct {
	BBox       *geometry.RawBox `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Lines      []RawLine        `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// RawLine is a recognized line.
type RawLine struct {
	BBox       *geometry.RawBox `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Text       string           `json:"text" yaml:"text"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
	Words      []RawWord        `json:"words,omitempty" yaml:"words,omitempty"`
}

// RawWord is a recognized word.
type RawWord struct {
	BBox       *geometry.RawBox `json:"bbox,omitempty" yaml:"bbox,omitempty"`
	Text       string           `json:"text" yaml:"text"`
	Confidence float64          `json:"confidence" yaml:"confidence"`
}

// Shape resolves which representation the extractor should use. Blocks win
// over lines, lines over text. Blocks only count when one of them holds a
// paragraph.
func (r RawResult) Shape() Shape {
	switch {
	case r.hasParagraphs():
		return ShapeBlocks
	case len(r.Lines) > 0:
		return ShapeLines
	case strings.TrimSpace(r.Text) != "":
		return ShapeText
	default:
		return ShapeEmpty
	}
}

func (r RawResult) hasParagraphs() bool {
	for _, block := range r.Blocks {
		if len(block.Paragraphs) > 0 {
			return true
		}
	}
	return false
}
