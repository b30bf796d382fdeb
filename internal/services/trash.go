package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/internal/ports"
)

// TrashService soft-deletes worktrees into a recoverable trash and
// restores them, repairing the git administrative link on the way back.
type TrashService struct {
	trash ports.TrashRepository
	git   ports.GitWorktrees
	mover ports.Mover

	// Injectable for tests
	cwd func() (string, error)
	now func() time.Time
}

// NewTrashService creates a new TrashService.
func NewTrashService(trash ports.TrashRepository, git ports.GitWorktrees, mover ports.Mover) *TrashService {
	return &TrashService{
		trash: trash,
		git:   git,
		mover: mover,
		cwd:   os.Getwd,
		now:   time.Now,
	}
}

// SoftDelete moves the worktree at path into the trash and writes its
// metadata record. The move happens first; a metadata failure after a
// successful move is a fatal inconsistency reported to the caller, not
// rolled back, since the payload is already detached from its identity.
func (s *TrashService) SoftDelete(ctx context.Context, worktreePath, branch, bareRepo string) (*domain.TrashEntry, error) {
	worktreePath, err := filepath.Abs(worktreePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve worktree path: %w", err)
	}

	if err := s.ensureNotActive(worktreePath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(worktreePath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrWorktreeNotFound, worktreePath)
		}
		return nil, fmt.Errorf("failed to stat worktree: %w", err)
	}

	// Snapshot before the move; afterwards the path is gone
	lastCommit := s.git.LastCommit(ctx, bareRepo, branch)
	filesCount := countFiles(worktreePath)

	deletedAt := s.now().Unix()
	entryID := domain.TrashEntryID(branch, deletedAt)

	// Same-second deletion of the same branch collides on the ID; bump
	// the timestamp until the slot is free
	for attempt := 0; attempt < 5; attempt++ {
		if _, err := os.Stat(s.trash.EntryPath(entryID)); os.IsNotExist(err) {
			break
		}
		deletedAt++
		entryID = domain.TrashEntryID(branch, deletedAt)
	}

	if _, err := s.trash.MoveIn(ctx, worktreePath, entryID); err != nil {
		return nil, err
	}

	entry := domain.TrashEntry{
		ID:           entryID,
		OriginalPath: worktreePath,
		Branch:       branch,
		BareRepo:     bareRepo,
		DeletedAt:    deletedAt,
		LastCommit:   lastCommit,
		FilesCount:   filesCount,
	}

	if err := s.trash.WriteMetadata(ctx, entryID, entry); err != nil {
		// The payload moved but has no recoverable identity now. This
		// must reach the user, not a log file.
		logging.Logger.Error("Metadata write failed after move", "entry", entryID, "error", err)
		return nil, fmt.Errorf(
			"worktree moved to %s but metadata write failed (%v); manual intervention required",
			s.trash.EntryPath(entryID), err)
	}

	logging.Logger.Info("Worktree soft-deleted", "entry", entryID, "path", worktreePath)
	return &entry, nil
}

// Recover moves a trashed worktree back to its original path and
// re-establishes the bidirectional git worktree link. On any failure
// after the physical move, the payload is moved back to trash
// (best effort) before the error is reported.
func (s *TrashService) Recover(ctx context.Context, entryID string) (*domain.TrashEntry, error) {
	entry, err := s.trash.ReadMetadata(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(entry.OriginalPath); err == nil {
		return nil, fmt.Errorf("%w: refusing to overwrite %s", domain.ErrPathExists, entry.OriginalPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat original path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}

	if err := s.trash.MoveOut(ctx, entryID, entry.OriginalPath); err != nil {
		return nil, err
	}

	if err := s.repairLink(ctx, entry); err != nil {
		return nil, s.rollback(ctx, entry, err)
	}

	logging.Logger.Info("Worktree recovered", "entry", entryID, "path", entry.OriginalPath)
	return &entry, nil
}

// repairLink re-establishes the pointer files between the restored
// worktree and its admin dir inside the bare repository. Lookup order:
// exact branch name, sanitized branch name, then a scan of every admin
// dir's back-pointer. When nothing matches, fall back to re-creating
// the worktree binding from scratch while preserving the payload.
func (s *TrashService) repairLink(ctx context.Context, entry domain.TrashEntry) error {
	adminDirs, err := s.git.AdminDirs(ctx, entry.BareRepo)
	if err != nil {
		return err
	}

	adminSet := make(map[string]bool, len(adminDirs))
	for _, d := range adminDirs {
		adminSet[d] = true
	}

	candidates := []string{
		filepath.Base(entry.Branch),
		domain.SanitizePathComponent(entry.Branch),
		filepath.Base(entry.OriginalPath),
	}
	for _, c := range candidates {
		if adminSet[c] {
			return s.git.Relink(ctx, entry.BareRepo, c, entry.OriginalPath)
		}
	}

	// Back-pointer scan: whichever admin dir still references the
	// original path is ours
	for _, d := range adminDirs {
		target, err := s.git.BackPointer(ctx, entry.BareRepo, d)
		if err != nil {
			logging.Logger.Debug("Unreadable back-pointer", "admin_dir", d, "error", err)
			continue
		}
		if target == entry.OriginalPath {
			return s.git.Relink(ctx, entry.BareRepo, d, entry.OriginalPath)
		}
	}

	logging.Logger.Warn("No admin dir found, re-creating worktree binding",
		"branch", entry.Branch, "path", entry.OriginalPath)
	return s.recreateBinding(ctx, entry)
}

// recreateBinding is the degraded recovery path: no admin dir survives,
// so the worktree is re-added from scratch at the same path and the
// preserved payload is layered back over it.
func (s *TrashService) recreateBinding(ctx context.Context, entry domain.TrashEntry) error {
	holding := entry.OriginalPath + ".recovering"
	if err := s.mover.Move(entry.OriginalPath, holding); err != nil {
		return fmt.Errorf("failed to set payload aside: %w", err)
	}

	if err := s.git.Add(ctx, entry.BareRepo, entry.OriginalPath, entry.Branch); err != nil {
		// Put the payload back where the rollback expects it
		if mvErr := s.mover.Move(holding, entry.OriginalPath); mvErr != nil {
			return fmt.Errorf("worktree re-add failed (%v) and payload is stranded at %s: %w",
				err, holding, mvErr)
		}
		return fmt.Errorf("failed to re-create worktree binding: %w", err)
	}

	if err := overlayTree(holding, entry.OriginalPath); err != nil {
		return fmt.Errorf("worktree re-created but payload re-sync failed, preserved copy at %s: %w", holding, err)
	}
	if err := os.RemoveAll(holding); err != nil {
		logging.Logger.Warn("Failed to remove holding directory", "path", holding, "error", err)
	}
	return nil
}

// rollback moves a half-recovered worktree back into the trash and
// restores its metadata. Rollback is best effort; when it fails too the
// error says so instead of claiming the trash entry is intact.
func (s *TrashService) rollback(ctx context.Context, entry domain.TrashEntry, cause error) error {
	if err := s.mover.Move(entry.OriginalPath, s.trash.EntryPath(entry.ID)); err != nil {
		return fmt.Errorf("recovery failed (%v) and rollback to trash also failed, worktree left at %s: %w",
			cause, entry.OriginalPath, err)
	}
	if err := s.trash.WriteMetadata(ctx, entry.ID, entry); err != nil {
		return fmt.Errorf("recovery failed (%v); payload returned to trash but metadata rewrite failed: %w",
			cause, err)
	}
	return fmt.Errorf("recovery failed, worktree returned to trash: %w", cause)
}

// List returns all recoverable entries, newest first.
func (s *TrashService) List(ctx context.Context) ([]domain.TrashEntry, error) {
	return s.trash.List(ctx)
}

// PermanentDelete irreversibly removes one entry.
func (s *TrashService) PermanentDelete(ctx context.Context, entryID string) error {
	if err := s.trash.Remove(ctx, entryID); err != nil {
		return err
	}
	logging.Logger.Info("Trash entry permanently deleted", "entry", entryID)
	return nil
}

// EmptyAll removes every readable entry and returns how many went.
// Entries without metadata stay put for manual inspection.
func (s *TrashService) EmptyAll(ctx context.Context) (int, error) {
	entries, err := s.trash.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	var failures []string
	for _, e := range entries {
		if err := s.trash.Remove(ctx, e.ID); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", e.ID, err))
			continue
		}
		removed++
	}
	if len(failures) > 0 {
		return removed, fmt.Errorf("failed to remove %d entries: %s", len(failures), strings.Join(failures, "; "))
	}
	return removed, nil
}

// AutoPurge removes entries deleted more than maxAgeDays ago and
// returns their IDs.
func (s *TrashService) AutoPurge(ctx context.Context, maxAgeDays int) ([]string, error) {
	entries, err := s.trash.List(ctx)
	if err != nil {
		return nil, err
	}

	threshold := time.Duration(maxAgeDays) * 24 * time.Hour
	now := s.now()

	var purged []string
	for _, e := range entries {
		if e.Age(now) <= threshold {
			continue
		}
		if err := s.trash.Remove(ctx, e.ID); err != nil {
			return purged, fmt.Errorf("purge stopped at %s: %w", e.ID, err)
		}
		purged = append(purged, e.ID)
	}
	if len(purged) > 0 {
		logging.Logger.Info("Auto-purged trash entries", "count", len(purged), "max_age_days", maxAgeDays)
	}
	return purged, nil
}

// ensureNotActive rejects deleting the worktree the process currently
// runs inside.
func (s *TrashService) ensureNotActive(worktreePath string) error {
	cwd, err := s.cwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}
	cwd = filepath.Clean(cwd)
	if cwd == worktreePath || strings.HasPrefix(cwd+string(filepath.Separator), worktreePath+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", domain.ErrActiveWorktree, worktreePath)
	}
	return nil
}

// countFiles counts regular files under root, best effort.
func countFiles(root string) int {
	count := 0
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			count++
		}
		return nil
	})
	return count
}

// overlayTree copies every file from src over dst, overwriting what's
// there. The payload's stale .git pointer file is skipped so the fresh
// binding survives.
func overlayTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == ".git" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
