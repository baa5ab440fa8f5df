package search

import (
	"github.com/DhruvTemura/second-brain-ai/core"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track routing decisions and intermediate results.
type RetrievalMonitor interface {
	Start(query, userID string)
	Classified(queryType QueryType, timeRange *core.TimeRange)
	AfterTemporalLookup(chunks []*core.Chunk)
	AfterQueryEmbedding(vector []float32)
	AfterSemanticSearch(results []*core.RetrievedChunk)
	Finish(results []*core.RetrievedChunk)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                            {}
func (n *noopMonitor) Classified(_ QueryType, _ *core.TimeRange)    {}
func (n *noopMonitor) AfterTemporalLookup(_ []*core.Chunk)          {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)              {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.RetrievedChunk) {}
func (n *noopMonitor) Finish(_ []*core.RetrievedChunk)              {}
