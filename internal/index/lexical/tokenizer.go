package lexical

import (
	"strings"
	"unicode"
)

const minTokenLen = 2

// Tokenize splits text on Unicode word boundaries, lower-cases every token
// and drops tokens shorter than two runes. Works for mixed-script text.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	tokens := make([]string, 0, 32)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		if len([]rune(token)) >= minTokenLen {
			tokens = append(tokens, token)
		}
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// TokenSet returns the unique tokens of text.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// OverlapRatio is the share of query tokens present in the other set.
func OverlapRatio(query, other map[string]struct{}) float64 {
	if len(query) == 0 || len(other) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := other[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}
