package search

import (
	"strings"
	"unicode"
)

// maxPrefixLen caps autocomplete prefix fan-out per term.
const maxPrefixLen = 24

// minPrefixLen is the shortest prefix the autocomplete index stores.
const minPrefixLen = 2

// Tokenize lowercases the inputs and splits them on Unicode word boundaries.
// Tokens shorter than two runes are dropped as noise. The result is
// deduplicated, preserving first appearance order.
func Tokenize(parts ...string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, part := range parts {
		fields := strings.FieldsFunc(strings.ToLower(part), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, field := range fields {
			if len([]rune(field)) < minPrefixLen {
				continue
			}
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// Prefixes returns every prefix of length >= 2 runes for each token of the
// term, plus the prefixes of the whole lowercased term so multi-word
// completions ("dune m") resolve. Deduplicated, first appearance order.
func Prefixes(term string) []string {
	seen := make(map[string]struct{})
	var prefixes []string

	add := func(s string) {
		runes := []rune(s)
		limit := len(runes)
		if limit > maxPrefixLen {
			limit = maxPrefixLen
		}
		for end := minPrefixLen; end <= limit; end++ {
			prefix := string(runes[:end])
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			prefixes = append(prefixes, prefix)
		}
	}

	lowered := strings.ToLower(strings.TrimSpace(term))
	add(lowered)
	for _, token := range Tokenize(term) {
		add(token)
	}
	return prefixes
}
