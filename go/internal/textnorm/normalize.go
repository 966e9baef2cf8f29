// Package textnorm turns free-text answers into comparison keys.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key lowercases s, trims surrounding whitespace and strips diacritics, so
// "Café", "cafe" and " CAFÉ " all produce "cafe".
func Key(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// FirstLetter returns the upper-cased first rune of Key(s), or "" when s is blank.
func FirstLetter(s string) string {
	k := Key(s)
	if k == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(k)
	return string(unicode.ToUpper(r))
}

// IsBlank reports whether s is empty after trimming.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
