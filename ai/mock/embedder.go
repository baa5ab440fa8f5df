package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"

	"github.com/DhruvTemura/second-brain-ai/ai"
)

// DefaultDimensions matches the width of small sentence-embedding models.
const DefaultDimensions = 384

// MockEmbedder hashes text into vectors. Set the override funcs before
// sharing the mock across goroutines; the call counter is atomic.
type MockEmbedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	calls atomic.Int64
}

var _ ai.Embedder = (*MockEmbedder)(nil)

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// WithEmbedTextFunc overrides EmbedText.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EmbedTextFunc = fn
	return m
}

// WithEmbedTextsFunc overrides EmbedTexts.
func (m *MockEmbedder) WithEmbedTextsFunc(fn func(ctx context.Context, texts []string) ([][]float32, error)) *MockEmbedder {
	m.EmbedTextsFunc = fn
	return m
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return DeterministicVector(text, DefaultDimensions), nil
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		out = append(out, DeterministicVector(text, DefaultDimensions))
	}
	return out, nil
}

// CallCount counts EmbedText and EmbedTexts calls together.
func (m *MockEmbedder) CallCount() int {
	return int(m.calls.Load())
}

// Reset zeroes the counter and drops both overrides.
func (m *MockEmbedder) Reset() {
	m.calls.Store(0)
	m.EmbedTextFunc, m.EmbedTextsFunc = nil, nil
}

// DeterministicVector expands an FNV-1a hash of text into a unit vector of
// length dim using a linear congruential sequence.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	state := h.Sum32()

	vector := make([]float32, dim)
	var norm float64
	for i := range vector {
		state = state*1664525 + 1013904223
		v := float32(state%1000) / 1000
		vector[i] = v
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}
