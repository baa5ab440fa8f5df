package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	defaultSequenceBandwidth = 100
)

// Backend owns the BadgerDB handle shared by every repository.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// engineLog routes Badger's printf-style logging into slog. Badger reports
// routine compaction and replay progress at info, which is demoted to debug.
type engineLog struct {
	logger *slog.Logger
}

var _ badger.Logger = (*engineLog)(nil)

func (l *engineLog) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *engineLog) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *engineLog) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *engineLog) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBackend opens the database directory at dir, creating it when missing.
// With inMemory set, dir is ignored and nothing touches the disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "badger")

	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrPersistence, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &engineLog{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrPersistence, err)
	}
	logger.Debug("database opened", "dir", dir, "inMemory", inMemory)
	return &Backend{db: db, logger: logger}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn inside a transaction that is always discarded afterwards.
// Writers must commit inside fn. Errors that are not already domain errors
// come back wrapped in storage.ErrPersistence.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return wrapEngineError(fn(tx))
}

// WriteBatch feeds fn's writes through a badger WriteBatch, which commits them
// in as many transactions as the engine's size limit requires. The writes are
// not atomic: on error, whatever was already committed stays committed.
func (b *Backend) WriteBatch(fn func(wb *badger.WriteBatch) error) error {
	wb := b.db.NewWriteBatch()
	if err := fn(wb); err != nil {
		wb.Cancel()
		return wrapEngineError(err)
	}
	return wrapEngineError(wb.Flush())
}

// GetSequence returns a BadgerDB sequence for generating sequential IDs.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	seq, err := b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrPersistence, err)
	}
	return seq, nil
}

// nextID draws the next non-zero ID from a sequence.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	// Zero is reserved as "no ID".
	if id == 0 {
		id, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(id), nil
}

// domainErrors pass through WithTx unwrapped.
var domainErrors = []error{
	storage.ErrNotFound,
	storage.ErrPersistence,
	storage.ErrJobNotQueued,
	storage.ErrInvalidQuery,
	core.ErrInvalidTransition,
	core.ErrValidation,
	context.Canceled,
	context.DeadlineExceeded,
}

func wrapEngineError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", storage.ErrPersistence, err)
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length or zero magnitude score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
