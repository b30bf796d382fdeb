package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/arbor-sh/arbor/internal/logging"
)

// documentStore reads and writes one JSON document guarded by an
// advisory file lock, so concurrent editor instances sharing the same
// state directory serialize their writes.
type documentStore struct {
	path string
	lock *flock.Flock
}

func newDocumentStore(path string) *documentStore {
	return &documentStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// withLock runs fn while holding the advisory lock.
func (d *documentStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := d.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", d.path, err)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logging.Logger.Warn("Failed to release store lock", "path", d.path, "error", err)
		}
	}()
	return fn()
}

// load decodes the document into v. A missing or malformed file is
// treated as no data: v is left at its zero value.
func (d *documentStore) load(v any) error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", d.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		logging.Logger.Warn("Ignoring malformed state document", "path", d.path, "error", err)
		return nil
	}
	return nil
}

// save writes the document atomically via a temp file and rename.
func (d *documentStore) save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", d.path, err)
	}
	return nil
}
