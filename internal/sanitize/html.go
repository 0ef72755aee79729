package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	// Use for fields that should only contain plain text (titles, comments, usernames).
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy allows safe user-generated content with basic formatting.
	// Use for event descriptions.
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML tags and returns plain text. StrictPolicy escapes
// entities in what it keeps; those are decoded again so "&" stays "&". The
// result is plain text and must be escaped by whatever renders it as HTML.
func Text(input string) string {
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// HTML sanitizes HTML content, allowing safe formatting tags.
// Removes: <script>, <iframe>, onclick handlers, style attributes.
func HTML(input string) string {
	return UGCPolicy.Sanitize(input)
}

// Line strips HTML and collapses all whitespace runs (newlines included) into a
// single space. Used for single-line fields such as event titles and usernames.
func Line(input string) string {
	return strings.Join(strings.Fields(Text(input)), " ")
}

// Comment strips HTML, drops control characters other than newlines and tabs,
// and trims surrounding whitespace. Line breaks inside the body are preserved.
func Comment(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, Text(input))
	return strings.TrimSpace(cleaned)
}
