package reqctx

import (
	"regexp"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize escapes HTML-significant characters in free text before it is persisted.
func Sanitize(text string) string {
	return htmlEscaper.Replace(strings.TrimSpace(text))
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateEmail is a structural check: a local part, "@", and a domain containing a dot.
func ValidateEmail(text string) bool {
	return emailPattern.MatchString(text)
}
