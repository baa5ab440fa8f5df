package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/dgraph-io/badger/v4"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) (*SourceRepository, error) {
	idSeq, err := backend.GetSequence(sourceIDSeq)
	if err != nil {
		return nil, err
	}

	return &SourceRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *SourceRepository) Close() error {
	return r.idSeq.Release()
}

// AddSource stores a new source.
func (r *SourceRepository) AddSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.put(tx, source); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// put assigns source its ID and creation time and writes it into tx.
func (r *SourceRepository) put(tx *badger.Txn, source *core.Source) error {
	id, err := nextID(r.idSeq)
	if err != nil {
		return err
	}
	source.Id = id
	source.CreatedAt = time.Now().UTC()
	return tx.Set(makeSourceKey(source.Id), storage.MarshalSource(source))
}

// GetSource retrieves a single source by ID.
func (r *SourceRepository) GetSource(ctx context.Context, id core.ID) (*core.Source, error) {
	var result *core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSource(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: source %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetSources retrieves multiple sources by their IDs.
func (r *SourceRepository) GetSources(ctx context.Context, ids ...core.ID) ([]*core.Source, error) {
	var result []*core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			source, err := readSource(tx, id)
			if err != nil {
				return err
			}
			if source != nil {
				result = append(result, source)
			}
		}
		return nil
	}, false)
	return result, err
}

// readSource returns nil without error when the source is absent.
func readSource(tx *badger.Txn, id core.ID) (*core.Source, error) {
	item, err := tx.Get(makeSourceKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var source *core.Source
	err = item.Value(func(val []byte) error {
		var err error
		source, err = storage.UnmarshalSource(val)
		return err
	})
	return source, err
}
