package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field limits. Lengths are counted in runes.
const (
	MinUsernameLen   = 3
	MaxUsernameLen   = 20
	MinPasswordLen   = 6
	MinMessageRunes  = 10
	MaxMessageRunes  = 500
	MaxDisplayLength = 120
)

var (
	usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailRE    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidUsername reports whether s is 3–20 characters of [A-Za-z0-9_].
func ValidUsername(s string) bool {
	n := len(s)
	return n >= MinUsernameLen && n <= MaxUsernameLen && usernameRE.MatchString(s)
}

// ValidEmail reports whether s has a local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailRE.MatchString(s)
}

// ValidPassword reports whether s is long enough.
func ValidPassword(s string) bool {
	return utf8.RuneCountInString(s) >= MinPasswordLen
}

// ValidMessageText reports whether s holds 10–500 runes once surrounding
// whitespace is trimmed.
func ValidMessageText(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= MinMessageRunes && n <= MaxMessageRunes
}

// NormalizeMessageText converts CRLF/CR line endings to LF and trims
// surrounding whitespace. It is the form messages are stored in; length
// checks run on the raw text through ValidMessageText.
func NormalizeMessageText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}

// ValidDisplayName accepts any name up to MaxDisplayLength runes.
func ValidDisplayName(s string) bool {
	return utf8.RuneCountInString(s) <= MaxDisplayLength
}
