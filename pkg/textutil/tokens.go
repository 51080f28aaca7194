// Package textutil normalizes transcript text for lexical retrieval.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "had": {}, "has": {},
	"have": {}, "how": {}, "i": {}, "if": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "so": {}, "that": {},
	"the": {}, "their": {}, "them": {}, "then": {}, "there": {}, "they": {}, "this": {},
	"to": {}, "us": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "you": {}, "your": {},
	"about": {}, "any": {}, "can": {}, "could": {}, "should": {}, "would": {}, "been": {},
}

// Fold returns s in Unicode-normalized, case-folded form.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Normalize folds s and collapses whitespace; used for cache keys and phrase
// matching.
func Normalize(s string) string {
	return strings.Join(strings.Fields(Fold(s)), " ")
}

// Tokens splits s into folded word tokens, dropping stop words and
// single-rune tokens.
func Tokens(s string) []string {
	words := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// TokenSet is Tokens deduplicated.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}
