package auth

import (
	"html"
	"strings"
	"unicode"
)

// SanitizeName trims a display name, strips control characters and escapes HTML.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return html.EscapeString(name)
}
