package extractor

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	bulletRun     = regexp.MustCompile(`\s*([•●▪◦‣·])\s*`)
	blankLines    = regexp.MustCompile(`\n\s*\n+`)
	markupTag     = regexp.MustCompile(`<[A-Za-z/!]`)
)

// CleanDescription normalizes description text for display: compatibility
// forms are folded, whitespace collapses to single spaces, each bullet starts
// its own line, and blank lines collapse. Applying it twice changes nothing.
func CleanDescription(text string) string {
	text = norm.NFKC.String(text)
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = bulletRun.ReplaceAllString(text, "\n$1 ")
	text = blankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// cleanInline collapses a title or company name onto one line.
func cleanInline(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}

// htmlToText renders an HTML fragment (such as a JSON-LD description) as
// plain text so that no markup reaches the posting. Entity-escaped markup
// (&lt;p&gt;...) decodes to tags on the first pass and is rendered again.
func htmlToText(fragment string) string {
	text := fragment
	for pass := 0; pass < 3; pass++ {
		if !strings.ContainsAny(text, "<&") {
			return text
		}
		root, err := html.Parse(strings.NewReader(text))
		if err != nil {
			return text
		}
		text = renderedText(root)
		if !markupTag.MatchString(text) {
			return text
		}
	}
	return markupTag.ReplaceAllStringFunc(text, func(string) string { return " " })
}
