// Package tokens repairs word tokens that the OCR engine glued together
// around dash characters.
package tokens

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

const dashes = "-–—"

// IsDash reports whether r is a hyphen, en-dash or em-dash.
func IsDash(r rune) bool {
	return strings.ContainsRune(dashes, r)
}

// Repair splits a word on every dash character. The dashes become tokens of
// their own. Split tokens keep the parent's bounding box and confidence and
// get ids of the form "<parent>_<n>". A word without dashes is returned as is.
func Repair(word document.Word) []document.Word {
	if !strings.ContainsAny(word.Text, dashes) {
		return []document.Word{word}
	}

	var parts []string
	var current strings.Builder
	for _, r := range word.Text {
		if !IsDash(r) {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		parts = append(parts, string(r))
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	if len(parts) == 0 {
		return []document.Word{word}
	}

	out := make([]document.Word, 0, len(parts))
	for i, text := range parts {
		out = append(out, document.Word{
			ID:         fmt.Sprintf("%s_%d", word.ID, i),
			Text:       text,
			BBox:       word.BBox,
			Confidence: word.Confidence,
		})
	}
	return out
}

// RepairAll applies Repair to every word, preserving order.
func RepairAll(words []document.Word) []document.Word {
	out := make([]document.Word, 0, len(words))
	for _, w := range words {
		out = append(out, Repair(w)...)
	}
	return out
}
