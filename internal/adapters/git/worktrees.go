package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
)

// CLIWorktrees talks to the git CLI. All commands run with the caller's
// context so an unresponsive git cannot hang an operation indefinitely.
type CLIWorktrees struct{}

// NewCLIWorktrees creates the git CLI adapter.
func NewCLIWorktrees() *CLIWorktrees {
	return &CLIWorktrees{}
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w\nOutput: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// List returns the worktrees attached to the bare repository.
func (g *CLIWorktrees) List(ctx context.Context, bareRepo string) ([]domain.Worktree, error) {
	logging.Logger.Debug("Listing worktrees", "bare_repo", bareRepo)

	output, err := run(ctx, bareRepo, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var worktrees []domain.Worktree
	var current domain.Worktree
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current.Path != "" {
				worktrees = append(worktrees, current)
			}
			current = domain.Worktree{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	logging.Logger.Debug("Found worktrees", "count", len(worktrees))
	return worktrees, nil
}

// Add creates a worktree for branch at path, creating the branch when it
// doesn't exist yet.
func (g *CLIWorktrees) Add(ctx context.Context, bareRepo, path, branch string) error {
	logging.Logger.Info("Creating worktree", "bare_repo", bareRepo, "path", path, "branch", branch)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create worktree base directory: %w", err)
	}

	if g.branchExists(ctx, bareRepo, branch) {
		_, err := run(ctx, bareRepo, "worktree", "add", path, branch)
		return err
	}
	_, err := run(ctx, bareRepo, "worktree", "add", path, "-b", branch)
	return err
}

// Remove detaches and deletes the worktree at path. A path that no
// longer exists is not an error.
func (g *CLIWorktrees) Remove(ctx context.Context, bareRepo, path string) error {
	logging.Logger.Info("Removing worktree", "bare_repo", bareRepo, "path", path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.Logger.Warn("Worktree path does not exist", "path", path)
		return nil
	}

	_, err := run(ctx, bareRepo, "worktree", "remove", "--force", path)
	return err
}

// AdminDirs returns the per-worktree metadata directory names under
// <bare>/worktrees.
func (g *CLIWorktrees) AdminDirs(ctx context.Context, bareRepo string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(bareRepo, "worktrees"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read worktrees dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// BackPointer reads the worktree path an admin dir points at.
func (g *CLIWorktrees) BackPointer(ctx context.Context, bareRepo, adminDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(bareRepo, "worktrees", adminDir, "gitdir"))
	if err != nil {
		return "", fmt.Errorf("failed to read gitdir pointer: %w", err)
	}
	// Content is "<worktree>/.git"
	target := strings.TrimSpace(string(data))
	return filepath.Dir(target), nil
}

// Relink rewrites both pointer files so the worktree at path and the
// admin dir reference each other again.
func (g *CLIWorktrees) Relink(ctx context.Context, bareRepo, adminDir, path string) error {
	logging.Logger.Info("Relinking worktree", "path", path, "admin_dir", adminDir)

	adminPath := filepath.Join(bareRepo, "worktrees", adminDir)
	if _, err := os.Stat(adminPath); err != nil {
		return fmt.Errorf("admin dir %s not accessible: %w", adminDir, err)
	}

	gitFile := fmt.Sprintf("gitdir: %s\n", adminPath)
	if err := os.WriteFile(filepath.Join(path, ".git"), []byte(gitFile), 0644); err != nil {
		return fmt.Errorf("failed to write worktree .git file: %w", err)
	}

	backPointer := fmt.Sprintf("%s\n", filepath.Join(path, ".git"))
	if err := os.WriteFile(filepath.Join(adminPath, "gitdir"), []byte(backPointer), 0644); err != nil {
		return fmt.Errorf("failed to write admin gitdir file: %w", err)
	}
	return nil
}

// LastCommit returns a one-line summary of the branch tip, best effort.
func (g *CLIWorktrees) LastCommit(ctx context.Context, bareRepo, branch string) string {
	output, err := run(ctx, bareRepo, "log", "-1", "--format=%h %s", branch)
	if err != nil {
		logging.Logger.Debug("Failed to get last commit", "branch", branch, "error", err)
		return ""
	}
	return strings.TrimSpace(output)
}

// branchExists checks if a branch exists locally.
func (g *CLIWorktrees) branchExists(ctx context.Context, bareRepo, branch string) bool {
	_, err := run(ctx, bareRepo, "show-ref", "--verify", fmt.Sprintf("refs/heads/%s", branch))
	return err == nil
}
