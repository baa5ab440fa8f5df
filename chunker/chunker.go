// Package chunker splits cleaned text into overlapping, size-bounded segments
// suitable for embedding.
//
// Tokens are approximated as four characters. Text is split into sentences on
// terminal punctuation and sentences are packed greedily into chunks of at most
// maxTokens*4 characters. A chunk after the first opens with the last
// overlapTokens/4 words of its predecessor, unless those words plus the
// sentence that started the chunk would already exceed the bound; then the
// overlap is left out. A sentence longer than the bound is never cut; it
// becomes a chunk of its own.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxTokens is the default chunk size bound in approximate tokens.
	DefaultMaxTokens = 800
	// DefaultOverlapTokens is the default overlap carried between chunks.
	DefaultOverlapTokens = 100
	// charsPerToken approximates token counts from character counts.
	charsPerToken = 4
)

var (
	sentencePattern  = regexp.MustCompile(`[^.!?]+[.!?]+`)
	horizontalSpace  = regexp.MustCompile(`[^\S\n]+`)
	spaceAroundNL    = regexp.MustCompile(` ?\n ?`)
	repeatedNewlines = regexp.MustCompile(`\n{2,}`)
)

// Clean collapses whitespace runs to single spaces, collapses runs of blank
// lines to a single newline and trims the result.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundNL.ReplaceAllString(text, "\n")
	text = repeatedNewlines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into ordered chunks of at most maxTokens*4 characters,
// carrying overlapTokens of context between consecutive chunks.
// Empty input and input without sentence terminators yield a single chunk
// equal to the trimmed input.
func Chunk(text string, maxTokens, overlapTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	maxChars := maxTokens * charsPerToken
	overlapWords := overlapTokens / charsPerToken

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && runeLen(current.String())+runeLen(sentence) > maxChars {
			closed := current.String()
			chunks = append(chunks, strings.TrimSpace(closed))

			current.Reset()
			// Overlap yields to the size bound.
			seed := sentence
			if overlap := tailWords(closed, overlapWords); overlap != "" {
				withOverlap := overlap + " " + strings.TrimLeft(sentence, " \t\n")
				if runeLen(withOverlap) <= maxChars {
					seed = withOverlap
				}
			}
			current.WriteString(seed)
			continue
		}
		current.WriteString(sentence)
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		chunks = append(chunks, last)
	}
	if len(chunks) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return chunks
}

// splitSentences returns the terminated sentences of text, followed by any
// unterminated trailing text. It returns nil when text has no terminator at all.
func splitSentences(text string) []string {
	spans := sentencePattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return nil
	}
	sentences := make([]string, 0, len(spans)+1)
	for _, span := range spans {
		sentences = append(sentences, text[span[0]:span[1]])
	}
	if tail := text[spans[len(spans)-1][1]:]; strings.TrimSpace(tail) != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// tailWords returns the last n whitespace-separated words of s.
func tailWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
