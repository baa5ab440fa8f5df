package search

import (
	"github.com/DhruvTemura/second-brain-ai/temporal"
)

// QueryType is the retrieval route chosen for a query.
type QueryType string

const (
	// TemporalOnly queries ask only about a time period.
	TemporalOnly QueryType = "TEMPORAL_ONLY"
	// TemporalSemantic queries ask about a topic within a time period.
	TemporalSemantic QueryType = "TEMPORAL_SEMANTIC"
	// SemanticOnly queries carry no recognized time phrase.
	SemanticOnly QueryType = "SEMANTIC_ONLY"
)

// Classify decides how query should be answered.
func Classify(query string) QueryType {
	if _, ok := temporal.Detect(query); !ok {
		return SemanticOnly
	}
	if len(residualTerms(query, temporal.Keywords)) > 0 {
		return TemporalSemantic
	}
	return TemporalOnly
}
