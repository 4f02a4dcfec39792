// Package sanitize strips unsafe markup from user-supplied text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy keeps basic formatting (<p>, <b>, <a>, lists, ...) and drops
	// scripts, frames, event handlers and styles.
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML and surrounding whitespace. The result is plain text:
// entities the policy emits are decoded again, so "&" and quotes survive as
// typed.
// Use for: photo titles and descriptions.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// HTML sanitizes formatted content.
// Use for: page content blocks.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}
