package search

import (
	"strings"
	"unicode"
)

// Stop words removed before deciding whether a temporal query also asks about a topic.
// Interrogatives, pronouns, articles, common request verbs and connectors.
var stopWords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"whom": true, "whose": true, "why": true, "how": true,

	"i": true, "me": true, "my": true, "mine": true, "myself": true,
	"you": true, "your": true, "we": true, "our": true, "us": true,
	"it": true, "its": true, "they": true, "them": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,

	"a": true, "an": true, "the": true,

	"did": true, "do": true, "does": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "have": true,
	"has": true, "had": true, "upload": true, "uploaded": true, "save": true,
	"saved": true, "store": true, "stored": true, "tell": true, "show": true,
	"list": true, "add": true, "added": true, "give": true, "find": true,
	"get": true, "can": true, "could": true, "would": true, "will": true,
	"should": true,

	"about": true, "on": true, "in": true, "at": true, "of": true,
	"for": true, "from": true, "to": true, "with": true, "and": true,
	"or": true, "any": true, "anything": true, "all": true, "everything": true,
	"something": true, "some": true, "stuff": true, "things": true,
	"thing": true, "during": true, "since": true, "ago": true,
	"please": true, "last": true,
}

// tokenize lowercases text, strips punctuation and splits on whitespace.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, text)
	return strings.Fields(cleaned)
}

// residualTerms returns the tokens of query that are neither time words nor stop words.
func residualTerms(query string, timeWords []string) []string {
	var terms []string
	for _, token := range tokenize(query) {
		if stopWords[token] || containsAny(token, timeWords) {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

func containsAny(token string, words []string) bool {
	for _, w := range words {
		if strings.Contains(token, w) {
			return true
		}
	}
	return false
}
