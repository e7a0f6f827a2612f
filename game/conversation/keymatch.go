package conversation

import (
	"iter"
	"strings"
	"unicode"
)

// Wildcard matches any single character inside a keyword pattern.
const Wildcard = '?'

// CatchAll is the keyword that matches every input.
const CatchAll = "*"

// SplitWords lowercases input, deletes every character outside
// [a-z0-9?] and whitespace, then yields the whitespace-separated words.
// Punctuation is removed, not treated as a boundary: "o'brien" is "obrien".
// The returned sequence may be ranged over more than once.
func SplitWords(input string) iter.Seq[string] {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == Wildcard:
			return r
		case unicode.IsSpace(r):
			return r
		}
		return -1
	}, strings.ToLower(input))
	return strings.FieldsSeq(cleaned)
}

// WordMatchesPattern reports whether word starts with pattern, where '?' in
// pattern matches any character. Characters of word past the pattern length
// are ignored.
func WordMatchesPattern(pattern, word string) bool {
	p := []rune(strings.ToLower(pattern))
	w := []rune(strings.ToLower(word))
	if len(w) < len(p) {
		return false
	}
	for i, c := range p {
		if c != Wildcard && c != w[i] {
			return false
		}
	}
	return true
}

// KeyMatchesInput reports whether keyword selects the topic for input.
func KeyMatchesInput(keyword, input string) bool {
	if keyword == "" {
		return false
	}
	if keyword == CatchAll {
		return true
	}
	for word := range SplitWords(input) {
		if WordMatchesPattern(keyword, word) {
			return true
		}
	}
	return false
}

// KeyMatcher tests one keyword against typed input. KeyMatchesInput is the
// default; callers may substitute their own.
type KeyMatcher func(keyword, input string) bool

// anyKeyMatches returns the first keyword of keys that matches typed.
func anyKeyMatches(keys []string, typed string, match KeyMatcher) (string, bool) {
	if match == nil {
		match = KeyMatchesInput
	}
	for _, k := range keys {
		if match(k, typed) {
			return k, true
		}
	}
	return "", false
}
