package badger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/dgraph-io/badger/v4"
)

// JobRepository implements storage.JobRepository for BadgerDB.
//
// Queued jobs are indexed under jobq: by creation time. The index entry is
// removed in the same transaction that moves the job out of queued, so
// ListPending only ever sees claimable work.
type JobRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	newID   func() (core.ID, error)
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	idSeq, err := backend.GetSequence(jobIDSeq)
	if err != nil {
		return nil, err
	}

	return &JobRepository{
		backend: backend,
		idSeq:   idSeq,
		newID:   func() (core.ID, error) { return nextID(idSeq) },
	}, nil
}

// Close releases the ID sequence.
func (r *JobRepository) Close() error {
	return r.idSeq.Release()
}

// CreateJob stores a new queued job for an existing source.
func (r *JobRepository) CreateJob(ctx context.Context, userID string, sourceID core.ID) (*core.Job, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyUser)
	}

	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		if job, err = r.put(tx, userID, sourceID); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// put writes a queued job and its queue and owner index entries into tx.
// The source must already be visible to tx.
func (r *JobRepository) put(tx *badger.Txn, userID string, sourceID core.ID) (*core.Job, error) {
	source, err := readSource(tx, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source %d", storage.ErrNotFound, sourceID)
	}

	id, err := r.newID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := &core.Job{
		Id:        id,
		UserID:    userID,
		SourceID:  sourceID,
		Status:    core.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	idValue := storage.MarshalID(job.Id)
	if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
		return nil, err
	}
	if err := tx.Set(makeJobQueueKey(job.CreatedAt, job.Id), idValue); err != nil {
		return nil, err
	}
	if err := tx.Set(makeUserTimeKey(jobUserPrefix, job.UserID, job.CreatedAt, job.Id), idValue); err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimJob atomically moves a queued job to processing.
// BadgerDB's serializable transactions reject the commit when a concurrent
// transaction modified the job after it was read; that loser gets ErrJobNotQueued.
func (r *JobRepository) ClaimJob(ctx context.Context, id core.ID) (*core.Job, error) {
	job, err := r.transition(id, core.JobStatusProcessing, "", func(current *core.Job) error {
		if current.Status != core.JobStatusQueued {
			return fmt.Errorf("%w: job %d is %s", storage.ErrJobNotQueued, id, current.Status)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return nil, fmt.Errorf("%w: job %d claimed concurrently", storage.ErrJobNotQueued, id)
	}
	return job, err
}

// UpdateStatus moves a job to a new status.
func (r *JobRepository) UpdateStatus(ctx context.Context, id core.ID, status core.JobStatus, errMsg string) (*core.Job, error) {
	return r.transition(id, status, errMsg, func(current *core.Job) error {
		return core.ValidateTransition(current.Status, status)
	})
}

// transition applies a status change in one read-write transaction after check approves it.
func (r *JobRepository) transition(id core.ID, status core.JobStatus, errMsg string, check func(*core.Job) error) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		job, err = readJob(tx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
		}
		if err := check(job); err != nil {
			return err
		}

		if job.Status == core.JobStatusQueued {
			if err := tx.Delete(makeJobQueueKey(job.CreatedAt, job.Id)); err != nil {
				return err
			}
		}

		job.Status = status
		job.UpdatedAt = time.Now().UTC()
		if status == core.JobStatusFailed {
			job.Error = errMsg
		} else {
			job.Error = ""
		}

		if err := tx.Set(makeJobKey(job.Id), storage.MarshalJob(job)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a single job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id core.ID) (*core.Job, error) {
	var result *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readJob(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: job %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// ListJobsByUser returns up to limit jobs owned by userID, newest first.
func (r *JobRepository) ListJobsByUser(ctx context.Context, userID string, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent jobs first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = makeUserPrefix(jobUserPrefix, userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the last possible key for this user
		startKey := makeUserTimeKey(jobUserPrefix, userID, time.UnixMicro(math.MaxInt64), core.ID(math.MaxUint64))
		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			jobID, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			job, err := readJob(tx, jobID)
			if err != nil {
				return err
			}
			if job != nil {
				results = append(results, job)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListPending returns up to limit queued jobs ordered by creation time ascending.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobQueuePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(results) < limit; iter.Next() {
			jobID, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			job, err := readJob(tx, jobID)
			if err != nil {
				return err
			}
			if job != nil && job.Status == core.JobStatusQueued {
				results = append(results, job)
			}
		}
		return nil
	}, false)
	return results, err
}

// readJob returns nil without error when the job is absent.
func readJob(tx *badger.Txn, id core.ID) (*core.Job, error) {
	item, err := tx.Get(makeJobKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job *core.Job
	err = item.Value(func(val []byte) error {
		var err error
		job, err = storage.UnmarshalJob(val)
		return err
	})
	return job, err
}

// readIndexedID reads the record ID stored as an index entry's value.
func readIndexedID(item *badger.Item) (core.ID, error) {
	var id core.ID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}
