package reembed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage/badger"
	"github.com/stretchr/testify/require"
)

var staleVector = []float32{1, 0, 0}

func setupRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

// seedChunks stores count chunks spread over sources of three chunks each,
// all carrying staleVector.
func seedChunks(t *testing.T, repos *badger.Repositories, count int) []*core.Chunk {
	t.Helper()
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	chunks := make([]*core.Chunk, 0, count)
	for i := 0; i < count; i++ {
		chunks = append(chunks, &core.Chunk{
			SourceID:  core.ID(i/3 + 1),
			UserID:    "u1",
			Index:     i % 3,
			Text:      fmt.Sprintf("chunk text %d", i),
			Vector:    staleVector,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		})
	}
	if count > 0 {
		require.NoError(t, repos.Chunks.AddChunks(ctx, chunks...))
	}
	return chunks
}

func allChunks(t *testing.T, repos *badger.Repositories) []*core.Chunk {
	t.Helper()
	chunks, err := repos.Chunks.ScanChunks(context.Background(), 0, 10000)
	require.NoError(t, err)
	return chunks
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}
