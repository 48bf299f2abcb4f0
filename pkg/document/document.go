// Package document holds the normalized reading model produced from OCR output:
// a Document is made of paragraphs, paragraphs of lines, lines of words.
package document

// Rectangle is an axis-aligned box in absolute document coordinates
// (top-left origin, device-independent pixels).
type Rectangle struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Bottom returns the Y coordinate of the lower edge.
func (r Rectangle) Bottom() float64 {
	return r.Y + r.Height
}

// Right returns the X coordinate of the right edge.
func (r Rectangle) Right() float64 {
	return r.X + r.Width
}

// IsZero reports whether r is the zero rectangle.
func (r Rectangle) IsZero() bool {
	return r == Rectangle{}
}

// Word is a single recognized token. Words are values and are never mutated
// after the extractor creates them.
type Word struct {
	ID         string    `json:"id" yaml:"id"`
	Text       string    `json:"text" yaml:"text"`
	BBox       Rectangle `json:"bbox" yaml:"bbox"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
}

// Line is an ordered run of words.
type Line struct {
	ID         int       `json:"id" yaml:"id"`
	BBox       Rectangle `json:"bbox" yaml:"bbox"`
	Text       string    `json:"text" yaml:"text"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Words      []Word    `json:"words" yaml:"words"`
}

// Paragraph is an ordered run of lines.
type Paragraph struct {
	ID         string    `json:"id" yaml:"id"`
	BBox       Rectangle `json:"bbox" yaml:"bbox"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	Lines      []Line    `json:"lines" yaml:"lines"`
}

// WordCount returns the number of words across all lines.
func (p Paragraph) WordCount() int {
	n := 0
	for _, line := range p.Lines {
		n += len(line.Words)
	}
	return n
}

// Document is the result of one completed OCR run over a selection.
type Document struct {
	Paragraphs           []Paragraph `json:"paragraphs" yaml:"paragraphs"`
	FullText             string      `json:"fullText" yaml:"full_text"`
	Confidence           float64     `json:"confidence" yaml:"confidence"`
	SelectionCoordinates Rectangle   `json:"selectionCoordinates" yaml:"selection_coordinates"`
}

// WordCount returns the number of words in the document.
func (d *Document) WordCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, p := range d.Paragraphs {
		n += p.WordCount()
	}
	return n
}

// HasWords reports whether the document contains at least one word.
func (d *Document) HasWords() bool {
	return d.WordCount() > 0
}

// WordAt returns a copy of the word at the given indices, or nil when any
// index is out of range.
func (d *Document) WordAt(paragraph, line, word int) *Word {
	if d == nil || paragraph < 0 || paragraph >= len(d.Paragraphs) {
		return nil
	}
	lines := d.Paragraphs[paragraph].Lines
	if line < 0 || line >= len(lines) {
		return nil
	}
	words := lines[line].Words
	if word < 0 || word >= len(words) {
		return nil
	}
	w := words[word]
	return &w
}
