// Package recognizers defines the OCR engine contract.
package recognizers

import (
	"context"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/rsvp/pkg/structure"
)

// ProgressFunc receives recognition progress as a percentage from 0 to 100.
type ProgressFunc func(percent int)

// Report calls f when it is non-nil.
func (f ProgressFunc) Report(percent int) {
	if f != nil {
		f(percent)
	}
}

// Recognizer interface that all OCR engines must implement
type Recognizer interface {
	// Recognize extracts text, and where the engine supports it geometry,
	// from a PNG/JPEG image. Progress may be reported any number of times.
	Recognize(ctx context.Context, image []byte, progress ProgressFunc) (structure.RawResult, error)
	// Name returns the engine's name
	Name() string
}

var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(the\s+)?text\s+in\s+(the\s+)?image\s+(is|says|reads):?\s*`),
	regexp.MustCompile(`(?i)^(the\s+)?image\s+contains\s+(the\s+following\s+)?text:?\s*`),
	regexp.MustCompile(`(?i)^here'?s?\s+(the\s+)?text\s+(extracted\s+)?from\s+(the\s+)?image:?\s*`),
	regexp.MustCompile(`(?i)^(i\s+can\s+see\s+)?text\s+(that\s+says|reading):?\s*`),
	regexp.MustCompile(`(?i)^i\s+can\s+see\s+text\s+reading:\s*`),
	regexp.MustCompile(`(?i)^certainly!\s+here'?s?\s+(the\s+)?text\s+(extracted\s+)?from\s+(the\s+)?image:?\s*`),
	regexp.MustCompile(`(?i)^here'?s?\s+the\s+extracted\s+text\s+from\s+(the\s+)?image:?\s*`),
}

// CleanResponse strips the chatter vision models wrap around transcribed
// text: leading phrases, surrounding quotes and code fences.
func CleanResponse(response string) string {
	response = strings.TrimSpace(response)

	for _, re := range prefixPatterns {
		response = re.ReplaceAllString(response, "")
		response = strings.TrimSpace(response)
	}

	response = strings.Trim(response, `"'`)

	if strings.HasPrefix(response, "```") && strings.HasSuffix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		// drop a language tag on the opening fence
		if i := strings.IndexByte(response, '\n'); i >= 0 && !strings.ContainsAny(response[:i], " \t") {
			response = response[i+1:]
		}
		response = strings.TrimSpace(response)
	}

	return response
}

// TruncateBody truncates a response body to a maximum length for error messages.
// Default maxLen is 500 if not specified.
func TruncateBody(body []byte, maxLen ...int) string {
	limit := 500
	if len(maxLen) > 0 && maxLen[0] > 0 {
		limit = maxLen[0]
	}
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}
