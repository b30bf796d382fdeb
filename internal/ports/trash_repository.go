package ports

import (
	"context"

	"github.com/arbor-sh/arbor/internal/domain"
)

// TrashRepository owns the trash root directory: payload moves, per-entry
// metadata files, listing and removal. It knows nothing about git.
type TrashRepository interface {
	// MoveIn renames src into the trash under entryID and returns the
	// entry's absolute path.
	MoveIn(ctx context.Context, src, entryID string) (string, error)
	// MoveOut renames the entry's payload back to dst.
	MoveOut(ctx context.Context, entryID, dst string) error
	WriteMetadata(ctx context.Context, entryID string, entry domain.TrashEntry) error
	ReadMetadata(ctx context.Context, entryID string) (domain.TrashEntry, error)
	List(ctx context.Context) ([]domain.TrashEntry, error)
	// Remove permanently deletes the entry payload and metadata.
	Remove(ctx context.Context, entryID string) error
	EntryPath(entryID string) string
}
