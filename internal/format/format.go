// Package format renders assistant markdown-ish text as plain terminal
// output. Stored transcript text is kept verbatim; formatting is applied
// at display time only.
package format

import (
	"regexp"
	"strings"
)

var (
	bulletRe = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
	boldRe   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	headerRe = regexp.MustCompile(`(?m)^##\s+`)
)

// Plain converts list markers to bullet glyphs and strips bold and
// header markers.
func Plain(text string) string {
	text = bulletRe.ReplaceAllString(text, "• ")
	text = boldRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
