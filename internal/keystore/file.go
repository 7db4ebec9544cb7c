// Package keystore persists the key table as a single pretty-printed JSON file.
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edvin/keyservice/internal/model"
	"github.com/edvin/keyservice/internal/platform"
)

// ErrCorrupt is returned by Load when the file exists but does not decode
// into a key table.
var ErrCorrupt = errors.New("key table is corrupt")

// FileStore reads and rewrites the whole key table on every call. It does no
// caching and no locking; callers serialize read-modify-write themselves.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the key table. A missing file yields an error wrapping
// fs.ErrNotExist and undecodable content one wrapping ErrCorrupt; choosing
// to fall back to an empty table is left to the caller.
func (s *FileStore) Load(ctx context.Context) (model.KeyTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read key table: %w", err)
	}

	var table model.KeyTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if table == nil {
		table = model.KeyTable{}
	}
	for _, rec := range table {
		if rec != nil && rec.Devices == nil {
			rec.Devices = []string{}
		}
	}
	return table, nil
}

// Save serializes the entire table and replaces the backing file. The data is
// written to a temp file in the same directory and renamed into place.
func (s *FileStore) Save(ctx context.Context, table model.KeyTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := make(model.KeyTable, len(table))
	for key, rec := range table {
		if rec != nil && rec.Devices == nil {
			rec = &model.KeyRecord{Expiry: rec.Expiry, Devices: []string{}}
		}
		out[key] = rec
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key table: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp := s.path + ".tmp-" + platform.NewID()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write key table: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace key table: %w", err)
	}

	return nil
}
