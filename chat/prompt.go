package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
)

// NoInformationAnswer is returned without calling the model when nothing was retrieved.
const NoInformationAnswer = "I don't have any information related to your query in my memory."

// InsufficientInformationPhrase is the refusal the model is told to use.
const InsufficientInformationPhrase = "I don't have enough information to answer that question"

// timestampLayout renders chunk timestamps in context blocks.
const timestampLayout = "Monday, January 2, 2006 at 3:04 PM MST"

const promptTemplate = `You are a helpful AI assistant with access to a user's personal knowledge base.

Your task is to answer the user's question based ONLY on the context provided below.

IMPORTANT RULES:
1. Only use information from the provided context to answer the question
2. If the context doesn't contain relevant information, say "%s"
3. Do not make up or infer information that isn't in the context
4. Be concise and direct in your answer
5. If the context contains conflicting information, mention both perspectives
6. Each context item shows when it was saved; use these timestamps to answer questions about when something happened or how long ago
7. When several items are relevant, prefer the most recent one
%s
CONTEXT:
%s

USER QUESTION:
%s

ANSWER:`

const temporalOnlyInstruction = "8. The user is asking about a time period: summarize all of the items saved in that period\n"

// buildContext renders one numbered block per chunk, separated by blank lines.
func buildContext(results []*core.RetrievedChunk, loc *time.Location) string {
	blocks := make([]string, len(results))
	for i, result := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[%d]", i+1)
		if result.SourceTitle != "" {
			fmt.Fprintf(&b, " (%s)", result.SourceTitle)
		}
		fmt.Fprintf(&b, " %s\n%s", result.Chunk.Timestamp.In(loc).Format(timestampLayout), result.Chunk.Text)
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}

// buildPrompt assembles the grounding prompt. temporalOnly adds the period-summary rule.
func buildPrompt(query, context string, temporalOnly bool) string {
	extra := ""
	if temporalOnly {
		extra = temporalOnlyInstruction
	}
	return fmt.Sprintf(promptTemplate, InsufficientInformationPhrase, extra, context, query)
}

// preview truncates text to limit runes, appending "..." only when something was cut.
func preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
