package structure

import (
	"fmt"
	"image"
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/geometry"
)

// Layout selects which raw shape FromWordBoxes builds.
type Layout int

const (
	// LayoutBlocks keeps the engine's block and paragraph grouping.
	LayoutBlocks Layout = iota
	// LayoutLines flattens everything into lines and leaves paragraph
	// detection to the extractor's gap heuristic.
	LayoutLines
)

func (l Layout) String() string {
	if l == LayoutLines {
		return "lines"
	}
	return "blocks"
}

// ParseLayout accepts "blocks", "lines" or the empty string (blocks).
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "blocks":
		return LayoutBlocks, nil
	case "lines":
		return LayoutLines, nil
	default:
		return LayoutBlocks, fmt.Errorf("unknown layout %q (want blocks or lines)", s)
	}
}

// WordBox is a word from an engine that numbers its layout instead of
// nesting it, as Tesseract's TSV output does.
type WordBox struct {
	Box        image.Rectangle
	Text       string
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

type lineKey struct {
	block, paragraph, line int
}

// FromWordBoxes groups words, given in reading order, into a raw result.
// Consecutive words sharing block, paragraph and line numbers form a line.
// Blank words are skipped. The overall confidence is the mean word
// confidence.
func FromWordBoxes(text string, boxes []WordBox, layout Layout) RawResult {
	raw := RawResult{Text: text}

	var (
		lines    []RawLine
		lineKeys []lineKey
		rects    []image.Rectangle
		sum      float64
		count    int
	)
	for _, b := range boxes {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		sum += b.Confidence
		count++

		key := lineKey{b.Block, b.Paragraph, b.Line}
		word := RawWord{BBox: box(b.Box), Text: b.Text, Confidence: b.Confidence}
		if n := len(lines); n > 0 && lineKeys[n-1] == key {
			lines[n-1].Words = append(lines[n-1].Words, word)
			rects[n-1] = rects[n-1].Union(b.Box)
			continue
		}
		lines = append(lines, RawLine{Words: []RawWord{word}})
		lineKeys = append(lineKeys, key)
		rects = append(rects, b.Box)
	}
	if count > 0 {
		raw.Confidence = sum / float64(count)
	}

	for i := range lines {
		finishLine(&lines[i], rects[i])
	}

	if layout == LayoutLines {
		raw.Lines = lines
		return raw
	}

	var paraRect image.Rectangle
	for i, line := range lines {
		key := lineKeys[i]
		newBlock := i == 0 || key.block != lineKeys[i-1].block
		newPara := newBlock || key.paragraph != lineKeys[i-1].paragraph

		if newBlock {
			raw.Blocks = append(raw.Blocks, RawBlock{})
		}
		block := &raw.Blocks[len(raw.Blocks)-1]
		if newPara {
			block.Paragraphs = append(block.Paragraphs, RawParagraph{})
			paraRect = image.Rectangle{}
		}
		para := &block.Paragraphs[len(block.Paragraphs)-1]
		para.Lines = append(para.Lines, line)
		paraRect = paraRect.Union(rects[i])
		para.BBox = box(paraRect)
		para.Confidence = meanLineConfidence(para.Lines)
	}
	for i := range raw.Blocks {
		raw.Blocks[i].Confidence = meanParagraphConfidence(raw.Blocks[i].Paragraphs)
	}

	return raw
}

func finishLine(line *RawLine, rect image.Rectangle) {
	texts := make([]string, 0, len(line.Words))
	var sum float64
	for _, w := range line.Words {
		texts = append(texts, w.Text)
		sum += w.Confidence
	}
	line.Text = strings.Join(texts, " ")
	line.Confidence = sum / float64(len(line.Words))
	line.BBox = box(rect)
}

func meanLineConfidence(lines []RawLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	var sum float64
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}

func meanParagraphConfidence(paragraphs []RawParagraph) float64 {
	if len(paragraphs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range paragraphs {
		sum += p.Confidence
	}
	return sum / float64(len(paragraphs))
}

func box(r image.Rectangle) *geometry.RawBox {
	return geometry.Corners(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}
