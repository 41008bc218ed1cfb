// Package sanitize strips markup from user supplied text.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text removes all HTML and surrounding whitespace
func Text(s string) string {
	return strings.TrimSpace(strict.Sanitize(s))
}

// Length counts characters, not bytes
func Length(s string) int {
	return utf8.RuneCountInString(s)
}
