package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)

// Sentences splits text into sentence-like units on terminator-plus-space
// boundaries. Units are trimmed, trailing terminators removed, empties dropped.
func Sentences(text string) []string {
	parts := sentenceSplitRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		unit := strings.TrimRight(strings.TrimSpace(part), ".!?")
		unit = strings.TrimSpace(unit)
		if unit == "" {
			continue
		}
		out = append(out, unit)
	}
	return out
}

// Tokens splits text into lowercase alphanumeric tokens.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		out = append(out, field)
	}
	return out
}

// ContentTokens is Tokens with the stop-word set removed.
func ContentTokens(text string) []string {
	tokens := Tokens(text)
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if stopWords[token] {
			continue
		}
		out = append(out, token)
	}
	return out
}

// NaiveTokens is the degraded fallback: whitespace-split tokens that are
// purely alphanumeric, lowercased, with no stop-word filtering.
func NaiveTokens(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		lower := strings.ToLower(field)
		ok := lower != ""
		for _, r := range lower {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, lower)
		}
	}
	return out
}
