package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
	arborports "github.com/arbor-sh/arbor/internal/ports"
)

// metadataFile is the per-entry metadata file written inside each
// trashed worktree directory.
const metadataFile = ".arbor-trash.json"

// TrashStore owns the trash root: one directory per soft-deleted
// worktree, holding the payload plus a metadata file.
type TrashStore struct {
	root  string
	mover arborports.Mover
	lock  *flock.Flock
}

// NewTrashStore creates a store rooted at the given directory.
func NewTrashStore(root string, mover arborports.Mover) *TrashStore {
	return &TrashStore{
		root:  root,
		mover: mover,
		lock:  flock.New(filepath.Join(root, ".lock")),
	}
}

// EntryPath returns the absolute directory for an entry ID.
func (s *TrashStore) EntryPath(entryID string) string {
	return filepath.Join(s.root, entryID)
}

func (s *TrashStore) metadataPath(entryID string) string {
	return filepath.Join(s.EntryPath(entryID), metadataFile)
}

// MoveIn renames src into the trash under entryID.
func (s *TrashStore) MoveIn(ctx context.Context, src, entryID string) (string, error) {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", fmt.Errorf("failed to create trash root: %w", err)
	}
	dst := s.EntryPath(entryID)
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("trash entry %s already exists", entryID)
	}
	if err := s.mover.Move(src, dst); err != nil {
		return "", fmt.Errorf("failed to move %s to trash: %w", src, err)
	}
	return dst, nil
}

// MoveOut renames the entry payload back to dst and removes the
// metadata file from the restored tree.
func (s *TrashStore) MoveOut(ctx context.Context, entryID, dst string) error {
	src := s.EntryPath(entryID)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrTrashEntryNotFound
		}
		return fmt.Errorf("failed to stat trash entry: %w", err)
	}
	if err := s.mover.Move(src, dst); err != nil {
		return fmt.Errorf("failed to move %s out of trash: %w", entryID, err)
	}
	if err := os.Remove(filepath.Join(dst, metadataFile)); err != nil && !os.IsNotExist(err) {
		logging.Logger.Warn("Failed to remove metadata from restored worktree", "path", dst, "error", err)
	}
	return nil
}

// WriteMetadata writes the entry record inside the moved directory.
// Writes are flock-guarded so two processes emptying and writing trash
// concurrently cannot interleave.
func (s *TrashStore) WriteMetadata(ctx context.Context, entryID string, entry domain.TrashEntry) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock trash store: %w", err)
	}
	defer s.lock.Unlock()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trash metadata: %w", err)
	}
	if err := os.WriteFile(s.metadataPath(entryID), data, 0644); err != nil {
		return fmt.Errorf("failed to write trash metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the entry record. Missing or malformed metadata is
// a hard failure here; recovery cannot proceed without it.
func (s *TrashStore) ReadMetadata(ctx context.Context, entryID string) (domain.TrashEntry, error) {
	data, err := os.ReadFile(s.metadataPath(entryID))
	if err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Stat(s.EntryPath(entryID)); os.IsNotExist(statErr) {
				return domain.TrashEntry{}, domain.ErrTrashEntryNotFound
			}
			return domain.TrashEntry{}, fmt.Errorf("%w: %s", domain.ErrMetadataMissing, entryID)
		}
		return domain.TrashEntry{}, fmt.Errorf("failed to read trash metadata: %w", err)
	}

	var entry domain.TrashEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.TrashEntry{}, fmt.Errorf("%w: %s: %v", domain.ErrMetadataMissing, entryID, err)
	}
	entry.ID = entryID
	return entry, nil
}

// List returns every readable entry, newest first. Entries with
// unreadable metadata are logged and skipped; the payload stays put for
// manual inspection. Disk sizes are computed here, lazily.
func (s *TrashStore) List(ctx context.Context) ([]domain.TrashEntry, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trash root: %w", err)
	}

	var entries []domain.TrashEntry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		entry, err := s.ReadMetadata(ctx, d.Name())
		if err != nil {
			logging.Logger.Warn("Skipping trash entry without metadata", "entry", d.Name(), "error", err)
			continue
		}
		entry.DiskSize = dirSize(s.EntryPath(d.Name()))
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DeletedAt > entries[j].DeletedAt
	})
	return entries, nil
}

// Remove permanently deletes the entry payload and metadata.
func (s *TrashStore) Remove(ctx context.Context, entryID string) error {
	path := s.EntryPath(entryID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrTrashEntryNotFound
		}
		return fmt.Errorf("failed to stat trash entry: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove trash entry %s: %w", entryID, err)
	}
	return nil
}

// dirSize walks the tree adding up file sizes. Errors are skipped; a
// partial size beats no size for display purposes.
func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
