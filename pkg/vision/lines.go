package vision

import (
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/geometry"
	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// wordBox is a Vision word flattened to its bounding rectangle.
type wordBox struct {
	X, Y, Width, Height int
	Text                string
	Confidence          float64
	// EndsLine is set when Vision detected a line break after the word.
	EndsLine bool
}

// lineBox is a run of words sharing a baseline.
type lineBox struct {
	Words               []wordBox
	X, Y, Width, Height int
}

// groupWordsIntoLines orders a paragraph's words top to bottom, left to
// right, and splits them into lines. A word starts a new line when it does
// not overlap the current line vertically, or when the previous word ended
// with a detected line break.
func groupWordsIntoLines(words []wordBox) []lineBox {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]wordBox, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if abs(sorted[i].Y-sorted[j].Y) < sorted[i].Height/2 {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	var lines []lineBox
	var current []wordBox
	for _, word := range sorted {
		if len(current) > 0 && (current[len(current)-1].EndsLine || !wordsOnSameLine(current, word)) {
			lines = append(lines, createLineFromWords(current))
			current = nil
		}
		current = append(current, word)
	}
	if len(current) > 0 {
		lines = append(lines, createLineFromWords(current))
	}

	return lines
}

// wordsOnSameLine reports whether newWord overlaps the vertical extent of
// the line, padded by a third of the average word height.
func wordsOnSameLine(currentLineWords []wordBox, newWord wordBox) bool {
	if len(currentLineWords) == 0 {
		return true
	}

	avgHeight := 0
	minY, maxY := currentLineWords[0].Y, currentLineWords[0].Y+currentLineWords[0].Height
	for _, word := range currentLineWords {
		avgHeight += word.Height
		minY = min(minY, word.Y)
		maxY = max(maxY, word.Y+word.Height)
	}
	avgHeight /= len(currentLineWords)

	tolerance := avgHeight / 3
	return newWord.Y+newWord.Height >= minY-tolerance && newWord.Y <= maxY+tolerance
}

func createLineFromWords(words []wordBox) lineBox {
	if len(words) == 0 {
		return lineBox{}
	}

	minX, minY := words[0].X, words[0].Y
	maxX, maxY := words[0].X+words[0].Width, words[0].Y+words[0].Height
	for _, word := range words[1:] {
		minX = min(minX, word.X)
		minY = min(minY, word.Y)
		maxX = max(maxX, word.X+word.Width)
		maxY = max(maxY, word.Y+word.Height)
	}

	return lineBox{
		Words:  words,
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// rawLine converts a line into the extractor's raw form.
func (l lineBox) rawLine() structure.RawLine {
	line := structure.RawLine{
		BBox: geometry.Box(float64(l.X), float64(l.Y), float64(l.Width), float64(l.Height)),
	}
	texts := make([]string, 0, len(l.Words))
	var sum float64
	for _, w := range l.Words {
		texts = append(texts, w.Text)
		sum += w.Confidence
		line.Words = append(line.Words, structure.RawWord{
			BBox:       geometry.Box(float64(w.X), float64(w.Y), float64(w.Width), float64(w.Height)),
			Text:       w.Text,
			Confidence: w.Confidence,
		})
	}
	line.Text = strings.Join(texts, " ")
	if len(l.Words) > 0 {
		line.Confidence = sum / float64(len(l.Words))
	}
	return line
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
