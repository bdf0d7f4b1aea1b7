package textutil

import (
	"strings"
	"unicode"
)

// Collapse trims the string and squashes every run of unicode whitespace
// (newlines, tabs and &nbsp; included) into a single space.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeName lowercases and strips everything but letters and digits,
// "Ear-training" and "ear training " both become "eartraining".
func NormalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, name)
}
