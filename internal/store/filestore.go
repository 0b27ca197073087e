package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// FileStore persists the recommendation list as a JSON document named
// <key>.json inside dir. Writes go through a temp file and rename so a
// crash never leaves a truncated document behind.
type FileStore struct {
	path string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir, key string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, key+".json")}, nil
}

// Path returns the document location.
func (f *FileStore) Path() string { return f.path }

// Load reads the document. A missing file is an empty list.
func (f *FileStore) Load(ctx context.Context) ([]model.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Recommendation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	recs, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", f.path, err)
	}
	return recs, nil
}

// Save writes the document atomically.
func (f *FileStore) Save(ctx context.Context, recs []model.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeList(recs)
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

// LastSave reports the document's modification time and entry count. ok
// is false if nothing has been saved yet.
func (f *FileStore) LastSave(ctx context.Context) (savedAt time.Time, count int, ok bool, err error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("inspecting %s: %w", f.path, err)
	}
	recs, err := f.Load(ctx)
	if err != nil {
		return time.Time{}, 0, false, err
	}
	return info.ModTime(), len(recs), true, nil
}

// Close is a no-op; FileStore holds no open handles.
func (f *FileStore) Close() error { return nil }
