// src/security/validation/sanitizers.go
package validation

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictHTMLPolicy = bluemonday.StrictPolicy()

// SanitizeText removes all HTML tags and attributes from an input string,
// preventing XSS before saving to the database.
func SanitizeText(s string) string {
	return strictHTMLPolicy.Sanitize(s)
}

// StripUnprintable removes non-printable characters and turns any
// whitespace into a plain space.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
}

// CleanName is the pipeline applied to user-supplied display names:
// strip markup and control characters, then collapse whitespace.
func CleanName(s string) string {
	return strings.Join(strings.Fields(StripUnprintable(SanitizeText(s))), " ")
}
