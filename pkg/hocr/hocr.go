// Package hocr renders documents as hOCR so they can be inspected with
// standard OCR tooling.
package hocr

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/document"
)

// FromDocument converts a document to a complete hOCR page. Paragraph, line
// and word ids are numbered across the whole page.
func FromDocument(doc document.Document) string {
	var b strings.Builder
	lineIndex, wordIndex := 0, 0

	for p, para := range doc.Paragraphs {
		fmt.Fprintf(&b, "<p class='ocr_par' id='par_%d'%s>\n", p+1, title(para.BBox, -1))
		for _, line := range para.Lines {
			lineIndex++
			fmt.Fprintf(&b, "<span class='ocr_line' id='line_%d'%s>", lineIndex, title(line.BBox, -1))
			for i, word := range line.Words {
				wordIndex++
				if i > 0 {
					b.WriteByte(' ')
				}
				fmt.Fprintf(&b, "<span class='ocrx_word' id='word_%d'%s>%s</span>",
					wordIndex, title(word.BBox, word.Confidence), html.EscapeString(word.Text))
			}
			b.WriteString("</span>\n")
		}
		b.WriteString("</p>\n")
	}

	return WrapInHOCRDocument(strings.TrimSuffix(b.String(), "\n"), doc.SelectionCoordinates)
}

// title builds the hOCR title attribute. Zero boxes are left out, and a
// negative confidence means there is none to report.
func title(box document.Rectangle, confidence float64) string {
	var props []string
	if !box.IsZero() {
		props = append(props, bbox(box))
	}
	if confidence >= 0 {
		props = append(props, fmt.Sprintf("x_wconf %d", int(math.Round(confidence))))
	}
	if len(props) == 0 {
		return ""
	}
	return fmt.Sprintf(" title='%s'", strings.Join(props, "; "))
}

func bbox(r document.Rectangle) string {
	return fmt.Sprintf("bbox %d %d %d %d",
		int(math.Round(r.X)), int(math.Round(r.Y)),
		int(math.Round(r.Right())), int(math.Round(r.Bottom())))
}

// WrapInHOCRDocument wraps content in a complete hOCR HTML document whose
// page box is the selection.
func WrapInHOCRDocument(content string, page document.Rectangle) string {
	pageTitle := ""
	if !page.IsZero() {
		pageTitle = fmt.Sprintf(" title='%s'", bbox(page))
	}
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
<head>
<title></title>
<meta http-equiv="Content-Type" content="text/html;charset=utf-8" />
<meta name='ocr-system' content='rsvp' />
<meta name='ocr-capabilities' content='ocr_page ocr_par ocr_line ocrx_word' />
</head>
<body>
<div class='ocr_page' id='page_1'%s>
%s
</div>
</body>
</html>`, pageTitle, content)
}
