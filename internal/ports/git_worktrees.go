package ports

import (
	"context"

	"github.com/arbor-sh/arbor/internal/domain"
)

// GitWorktrees is the narrow slice of git this subsystem needs. The real
// implementation shells out to the git CLI; tests inject fakes.
type GitWorktrees interface {
	// List returns the worktrees attached to the bare repository.
	List(ctx context.Context, bareRepo string) ([]domain.Worktree, error)
	// Add creates a worktree for branch at path.
	Add(ctx context.Context, bareRepo, path, branch string) error
	// Remove detaches and deletes the worktree at path.
	Remove(ctx context.Context, bareRepo, path string) error
	// AdminDirs returns the names of the per-worktree metadata
	// directories under <bare>/worktrees.
	AdminDirs(ctx context.Context, bareRepo string) ([]string, error)
	// BackPointer reads the worktree path an admin dir points at, from
	// its gitdir file.
	BackPointer(ctx context.Context, bareRepo, adminDir string) (string, error)
	// Relink rewrites both pointer files so path and the admin dir
	// reference each other again.
	Relink(ctx context.Context, bareRepo, adminDir, path string) error
	// LastCommit returns a one-line summary of the branch tip, best
	// effort (empty on failure).
	LastCommit(ctx context.Context, bareRepo, branch string) string
}
