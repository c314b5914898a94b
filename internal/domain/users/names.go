package users

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/okian/clickrank/internal/domain/fault"
)

// Name length bounds, counted in runes after whitespace normalization.
const (
	MinNameLen = 2
	MaxNameLen = 32
)

// ErrNameLength is the public message for an out-of-range name.
const ErrNameLength = "Name must be 2–32 characters"

// NormalizeName trims raw, collapses whitespace runs to one space, checks
// the length, and only then strips disallowed runes. A name that passes the
// length check may therefore come back shorter than MinNameLen.
func NormalizeName(raw string) (string, error) {
	const op = "users.normalize_name"
	name := strings.Join(strings.FieldsFunc(raw, isNameSpace), " ")
	if n := utf8.RuneCountInString(name); n < MinNameLen || n > MaxNameLen {
		return "", fault.Validation(op, ErrNameLength)
	}
	return strings.Map(func(r rune) rune {
		if allowedNameRune(r) {
			return r
		}
		return -1
	}, name), nil
}

// isNameSpace reports whitespace that separates name words: unicode.IsSpace
// without NEL (U+0085), plus the byte order mark (U+FEFF).
func isNameSpace(r rune) bool {
	switch r {
	case '\u0085':
		return false
	case '\ufeff':
		return true
	}
	return unicode.IsSpace(r)
}

func allowedNameRune(r rune) bool {
	switch r {
	case ' ', '_', '.', '-':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
