package retrieval

import (
	"strings"
	"unicode"
)

// minTermLen is the shortest token that counts as non-trivial.
const minTermLen = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "had": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "has": true, "his": true,
	"how": true, "its": true, "who": true, "did": true, "does": true, "what": true,
	"when": true, "where": true, "which": true, "why": true, "with": true, "this": true,
	"that": true, "these": true, "those": true, "from": true, "into": true, "about": true,
	"there": true, "their": true, "they": true, "them": true, "then": true, "than": true,
	"have": true, "been": true, "were": true, "will": true, "would": true, "could": true,
	"should": true, "shall": true, "may": true, "might": true, "must": true, "some": true,
	"such": true, "only": true, "also": true, "very": true, "much": true, "many": true,
	"more": true, "most": true, "other": true, "each": true, "both": true, "your": true,
	"yours": true, "mine": true, "him": true, "she": true, "say": true, "says": true,
	"tell": true, "please": true, "document": true, "pdf": true, "text": true,
}

// Terms returns the distinct non-trivial lowercase tokens of s.
func Terms(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenize(s) {
		out[tok] = struct{}{}
	}
	return out
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	toks := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTermLen || stopwords[f] {
			continue
		}
		toks = append(toks, f)
	}
	return toks
}
