// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/dgraph-io/badger/v4"
)

// Repositories bundles the repositories sharing one BadgerDB backend.
type Repositories struct {
	Sources *SourceRepository
	Jobs    *JobRepository
	Chunks  *ChunkRepository
	Backend *Backend
}

// OpenRepositories opens an on-disk database at path and creates every repository on it.
// Caller must Close the result when done.
func OpenRepositories(path string) (*Repositories, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newRepositories(backend)
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return newRepositories(backend)
}

func newRepositories(backend *Backend) (*Repositories, error) {
	sources, err := NewSourceRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := NewJobRepository(backend)
	if err != nil {
		sources.Close()
		backend.Close()
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		jobs.Close()
		sources.Close()
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Sources: sources,
		Jobs:    jobs,
		Chunks:  chunks,
		Backend: backend,
	}, nil
}

// Submit stores a source together with the queued job that will ingest it.
// Both are written in one transaction, so a source never exists without its job.
func (r *Repositories) Submit(ctx context.Context, source *core.Source) (*core.Source, *core.Job, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, nil, err
	}

	var job *core.Job
	err := r.Backend.WithTx(func(tx *badger.Txn) error {
		if err := r.Sources.put(tx, source); err != nil {
			return err
		}
		var err error
		if job, err = r.Jobs.put(tx, source.UserID, source.Id); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, nil, err
	}
	return source, job, nil
}

// Close releases every repository and then the backend.
func (r *Repositories) Close() error {
	return errors.Join(
		r.Chunks.Close(),
		r.Jobs.Close(),
		r.Sources.Close(),
		r.Backend.Close(),
	)
}
