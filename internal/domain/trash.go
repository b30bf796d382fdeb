package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TrashEntry describes one soft-deleted worktree sitting in the trash
// root. The entry ID doubles as the directory name holding the payload.
type TrashEntry struct {
	ID           string `json:"-"`
	OriginalPath string `json:"original_path"`
	Branch       string `json:"branch_name"`
	BareRepo     string `json:"bare_repo"`
	DeletedAt    int64  `json:"deleted_at"`
	LastCommit   string `json:"last_commit,omitempty"`
	FilesCount   int    `json:"files_count"`

	// DiskSize is computed lazily when listing, never persisted.
	DiskSize int64 `json:"-"`
}

// Age returns how long ago the entry was deleted.
func (e TrashEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(e.DeletedAt, 0))
}

// Validate checks the fields recovery depends on.
func (e TrashEntry) Validate() error {
	if e.OriginalPath == "" || e.Branch == "" || e.BareRepo == "" {
		return fmt.Errorf("%w: incomplete metadata for %q", ErrMetadataMissing, e.ID)
	}
	return nil
}

// TrashEntryID derives the storage directory name for a deletion.
// Uniqueness comes from the timestamp granularity.
func TrashEntryID(branch string, deletedAt int64) string {
	return fmt.Sprintf("%s-%d", SanitizePathComponent(branch), deletedAt)
}

// SanitizePathComponent turns a branch name into a safe directory name
// component: slashes and whitespace become hyphens, control characters
// are dropped.
func SanitizePathComponent(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			// drop
		case r == '/' || r == '\\' || unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if out == "" {
		out = "worktree"
	}
	return out
}
