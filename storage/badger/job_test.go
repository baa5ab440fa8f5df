package badger

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepository_CreateJob(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()
	source := addTextSource(t, repos, "u1", "Meeting notes: discussed Q3 roadmap.")

	job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
	require.NoError(t, err)
	assert.NotZero(t, job.Id)
	assert.Equal(t, core.JobStatusQueued, job.Status)
	assert.Equal(t, source.Id, job.SourceID)
	assert.Empty(t, job.Error)

	got, err := repos.Jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusQueued, got.Status)
}

func TestJobRepository_CreateJobRequiresSource(t *testing.T) {
	repos := newTestRepositories(t)

	_, err := repos.Jobs.CreateJob(t.Context(), "u1", 4242)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pending, err := repos.Jobs.ListPending(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJobRepository_ListPendingOrder(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()

	var ids []core.ID
	for i := 0; i < 5; i++ {
		source := addTextSource(t, repos, "u1", "note")
		job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
		require.NoError(t, err)
		ids = append(ids, job.Id)
	}

	pending, err := repos.Jobs.ListPending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i, job := range pending {
		assert.Equal(t, ids[i], job.Id)
	}

	t.Run("claimed jobs leave the queue", func(t *testing.T) {
		_, err := repos.Jobs.ClaimJob(ctx, ids[0])
		require.NoError(t, err)

		pending, err := repos.Jobs.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 4)
		assert.Equal(t, ids[1], pending[0].Id)
	})
}

func TestJobRepository_Lifecycle(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()
	source := addTextSource(t, repos, "u1", "note")
	job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
	require.NoError(t, err)

	claimed, err := repos.Jobs.ClaimJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusProcessing, claimed.Status)

	done, err := repos.Jobs.UpdateStatus(ctx, job.Id, core.JobStatusDone, "")
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusDone, done.Status)
	assert.False(t, done.UpdatedAt.Before(done.CreatedAt))

	_, err = repos.Jobs.UpdateStatus(ctx, job.Id, core.JobStatusFailed, "late failure")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	_, err = repos.Jobs.ClaimJob(ctx, job.Id)
	assert.ErrorIs(t, err, storage.ErrJobNotQueued)
}

func TestJobRepository_FailedRecordsMessage(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()
	source := addTextSource(t, repos, "u1", "note")
	job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
	require.NoError(t, err)

	_, err = repos.Jobs.ClaimJob(ctx, job.Id)
	require.NoError(t, err)
	_, err = repos.Jobs.UpdateStatus(ctx, job.Id, core.JobStatusFailed, "extraction failed: empty document")
	require.NoError(t, err)

	got, err := repos.Jobs.GetJob(ctx, job.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusFailed, got.Status)
	assert.Equal(t, "extraction failed: empty document", got.Error)
}

func TestJobRepository_QueuedCanFailDirectly(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()
	source := addTextSource(t, repos, "u1", "note")
	job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
	require.NoError(t, err)

	_, err = repos.Jobs.UpdateStatus(ctx, job.Id, core.JobStatusFailed, "source vanished")
	require.NoError(t, err)

	pending, err := repos.Jobs.ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJobRepository_ConcurrentClaim(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()
	source := addTextSource(t, repos, "u1", "note")
	job, err := repos.Jobs.CreateJob(ctx, "u1", source.Id)
	require.NoError(t, err)

	const claimants = 8
	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.Jobs.ClaimJob(ctx, job.Id)
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, storage.ErrJobNotQueued):
				losses.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(claimants-1), losses.Load())
}

func TestJobRepository_ListJobsByUser(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := t.Context()

	var mine []core.ID
	for i := 0; i < 3; i++ {
		source := addTextSource(t, repos, "alice", "note")
		job, err := repos.Jobs.CreateJob(ctx, "alice", source.Id)
		require.NoError(t, err)
		mine = append(mine, job.Id)
	}
	other := addTextSource(t, repos, "alice2", "note")
	_, err := repos.Jobs.CreateJob(ctx, "alice2", other.Id)
	require.NoError(t, err)

	jobs, err := repos.Jobs.ListJobsByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, mine[2], jobs[0].Id)
	assert.Equal(t, mine[0], jobs[2].Id)
	for _, job := range jobs {
		assert.Equal(t, "alice", job.UserID)
	}

	limited, err := repos.Jobs.ListJobsByUser(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = repos.Jobs.ListJobsByUser(ctx, "alice", 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}
