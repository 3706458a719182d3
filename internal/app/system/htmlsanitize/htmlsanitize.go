// Package htmlsanitize strips markup from free text admins type into the
// console (rejection reasons, notes, names) before it is stored and later
// shown in driver and client apps.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML elements from s and returns the plain text,
// trimmed. Entities are decoded so "a &amp; b" is stored as "a & b".
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s survives Text unchanged.
func IsPlainText(s string) bool {
	return Text(s) == strings.TrimSpace(s)
}
