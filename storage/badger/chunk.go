package badger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/dgraph-io/badger/v4"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
//
// Each chunk is stored once under chk: and indexed twice: by owner and
// timestamp (chkt:) for user-scoped scans, and by source and index (chks:)
// for ordered per-source reads.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	return &ChunkRepository{backend: backend}, nil
}

// Close is a no-op; chunk IDs are content-derived and need no sequence.
func (r *ChunkRepository) Close() error {
	return nil
}

// AddChunks persists chunks through a write batch, so a source with more
// chunks than one transaction can hold is still stored. If any write fails,
// every key of the batch is deleted again before the error is returned.
// Readers may see part of the batch while it is being written.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) error {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, chunk := range chunks {
		chunk.Id = core.ChunkID(chunk.SourceID, chunk.Index)
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
	}

	err := r.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := wb.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			idValue := storage.MarshalID(chunk.Id)
			for _, key := range chunkIndexKeys(chunk) {
				if err := wb.Set(key, idValue); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if undoErr := r.removeChunks(chunks); undoErr != nil {
		r.backend.logger.Error("could not remove partially written chunks", "count", len(chunks), "err", undoErr)
		return errors.Join(err, undoErr)
	}
	return err
}

// removeChunks deletes the records and index entries of chunks.
// Keys that were never written are ignored.
func (r *ChunkRepository) removeChunks(chunks []*core.Chunk) error {
	return r.backend.WriteBatch(func(wb *badger.WriteBatch) error {
		for _, chunk := range chunks {
			keys := append(chunkIndexKeys(chunk), makeChunkKey(chunk.Id))
			for _, key := range keys {
				if err := wb.Delete(key); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// chunkIndexKeys returns the owner/time and source/index keys of chunk.
func chunkIndexKeys(chunk *core.Chunk) [][]byte {
	return [][]byte{
		makeUserTimeKey(chunkTimePrefix, chunk.UserID, chunk.Timestamp, chunk.Id),
		makeChunkSourceKey(chunk.SourceID, chunk.Index),
	}
}

// GetChunksBySource returns the chunks of a source ordered by index.
func (r *ChunkRepository) GetChunksBySource(ctx context.Context, sourceID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkSourceKey(sourceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			chunkID, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			chunk, err := readChunk(tx, chunkID)
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// SimilaritySearch ranks a user's chunks by cosine similarity to vector.
// Ties are broken by timestamp, most recent first.
func (r *ChunkRepository) SimilaritySearch(ctx context.Context, vector []float32, userID string, limit int, timeRange *core.TimeRange) ([]*core.RetrievedChunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var results []*core.RetrievedChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeUserPrefix(chunkTimePrefix, userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		var endKey []byte
		if timeRange != nil {
			iter.Seek(makePartialUserTimeKey(chunkTimePrefix, userID, timeRange.Start))
			endKey = makeUserTimeKey(chunkTimePrefix, userID, timeRange.End, core.ID(math.MaxUint64))
		} else {
			iter.Rewind()
		}

		for ; iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if endKey != nil && slices.Compare(iter.Item().Key(), endKey) > 0 {
				break
			}

			chunkID, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			chunk, err := readChunk(tx, chunkID)
			if err != nil {
				return err
			}
			if chunk == nil || len(chunk.Vector) == 0 {
				continue
			}

			results = append(results, &core.RetrievedChunk{
				Chunk:      chunk,
				Similarity: cosineSimilarity(vector, chunk.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *core.RetrievedChunk) int {
		if a.Similarity > b.Similarity {
			return -1
		}
		if a.Similarity < b.Similarity {
			return 1
		}
		return b.Chunk.Timestamp.Compare(a.Chunk.Timestamp)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// TimeRangeQuery returns a user's chunks within [start, end], newest first.
func (r *ChunkRepository) TimeRangeQuery(ctx context.Context, userID string, start, end time.Time, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %v precedes start %v", storage.ErrInvalidQuery, end, start)
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Use reverse iterator to get most recent chunks first
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = makeUserPrefix(chunkTimePrefix, userID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		startKey := makeUserTimeKey(chunkTimePrefix, userID, end, core.ID(math.MaxUint64))
		stopKey := makePartialUserTimeKey(chunkTimePrefix, userID, start)

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			if slices.Compare(iter.Item().Key(), stopKey) < 0 {
				break
			}

			chunkID, err := readIndexedID(iter.Item())
			if err != nil {
				return err
			}
			chunk, err := readChunk(tx, chunkID)
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// CountChunks returns the number of stored chunks across all users.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ScanChunks returns up to limit chunks with IDs greater than after, in ID order.
func (r *ChunkRepository) ScanChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(after)); iter.Valid() && len(results) < limit; iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk.Id == after && after != 0 {
				continue
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// ReplaceVectors overwrites the embeddings of existing chunks. Every other
// field is read back from the stored record, so only the vector changes.
func (r *ChunkRepository) ReplaceVectors(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, update := range chunks {
			existing, err := readChunk(tx, update.Id)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, update.Id)
			}
			if len(update.Vector) == 0 {
				return fmt.Errorf("%w: %w", core.ErrValidation, core.ErrEmptyVector)
			}

			existing.Vector = update.Vector
			if err := tx.Set(makeChunkKey(existing.Id), storage.MarshalChunk(existing)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// readChunk returns nil without error when the chunk is absent.
func readChunk(tx *badger.Txn, id core.ID) (*core.Chunk, error) {
	item, err := tx.Get(makeChunkKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
