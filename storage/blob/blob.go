// Package blob stores uploaded file bytes on the local filesystem under
// generated names.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/DhruvTemura/second-brain-ai/storage"
	"github.com/google/uuid"
)

// Store is a directory of uploaded files. Locations returned by Save are
// file names relative to the directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating blob directory: %w", storage.ErrPersistence, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes data under a new UUID name keeping the extension of filename.
func (s *Store) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	location := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	if err := os.WriteFile(filepath.Join(s.dir, location), data, 0o644); err != nil {
		return "", fmt.Errorf("%w: writing blob: %w", storage.ErrPersistence, err)
	}
	return location, nil
}

// Read returns the bytes stored at location.
func (s *Store) Read(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location == "" || location != filepath.Base(location) {
		return nil, fmt.Errorf("%w: invalid blob location %q", storage.ErrNotFound, location)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, location))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: blob %s", storage.ErrNotFound, location)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob: %w", storage.ErrPersistence, err)
	}
	return data, nil
}

// Delete removes the blob at location. Missing blobs are ignored.
func (s *Store) Delete(ctx context.Context, location string) error {
	if location == "" || location != filepath.Base(location) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, location))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: deleting blob: %w", storage.ErrPersistence, err)
	}
	return nil
}
