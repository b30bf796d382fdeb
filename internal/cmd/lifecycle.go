package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	adaptergit "github.com/arbor-sh/arbor/internal/adapters/git"
	"github.com/arbor-sh/arbor/internal/config"
	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/services"
)

// RepoFlags identify the bare repository an operation targets.
type RepoFlags struct {
	Repo    string `help:"Path to the bare repository" required:"" type:"existingdir"`
	Project string `help:"Project name (defaults to the bare repo directory name)"`
}

// ProjectName resolves the project, defaulting to the repo directory
// name without a .git suffix.
func (f *RepoFlags) ProjectName() string {
	if f.Project != "" {
		return f.Project
	}
	return strings.TrimSuffix(filepath.Base(f.Repo), ".git")
}

// worktreePath derives where a branch's worktree lives unless the user
// overrode it.
func worktreePath(settings *config.Settings, project, branch, override string) string {
	if override != "" {
		return config.ExpandPath(override)
	}
	root := settings.WorktreeRoot
	if root == "" {
		root = filepath.Join(config.GetArborHome(), "worktrees")
	}
	return filepath.Join(config.ExpandPath(root), project, domain.SanitizePathComponent(branch))
}

func printResult(result services.Result) error {
	fmt.Println(result.String())
	if !result.Ok() {
		return fmt.Errorf("%s %s failed", result.Op, result.Target)
	}
	return nil
}

// CreateCmd creates a worktree and reserves its ports
type CreateCmd struct {
	RepoFlags
	Branch string `arg:"" help:"Branch to create the worktree for"`
	Path   string `help:"Worktree path (defaults to <worktree_root>/<project>/<branch>)"`
}

// Run executes the create command
func (c *CreateCmd) Run(cli *CLI) error {
	if err := adaptergit.ValidateBranchName(c.Branch); err != nil {
		return err
	}

	result := cli.Container.Lifecycle.Create(context.Background(), services.CreateParams{
		Project:  c.ProjectName(),
		Branch:   c.Branch,
		BareRepo: config.ExpandPath(c.Repo),
		Path:     worktreePath(cli.Container.Settings, c.ProjectName(), c.Branch, c.Path),
		Ranges:   cli.Container.Settings.PortRanges,
	})
	return printResult(result)
}

// DeleteCmd soft-deletes a worktree into the trash
type DeleteCmd struct {
	RepoFlags
	Branch string `arg:"" help:"Branch whose worktree should be trashed"`
	Path   string `help:"Worktree path (defaults to <worktree_root>/<project>/<branch>)"`
}

// Run executes the delete command
func (c *DeleteCmd) Run(cli *CLI) error {
	result := cli.Container.Lifecycle.Delete(context.Background(), services.DeleteParams{
		Project:  c.ProjectName(),
		Branch:   c.Branch,
		BareRepo: config.ExpandPath(c.Repo),
		Path:     worktreePath(cli.Container.Settings, c.ProjectName(), c.Branch, c.Path),
	})
	return printResult(result)
}

// RecoverCmd restores a trashed worktree
type RecoverCmd struct {
	RepoFlags
	Entry string `arg:"" help:"Trash entry ID (see 'arbor trash list')"`
}

// Run executes the recover command
func (c *RecoverCmd) Run(cli *CLI) error {
	result := cli.Container.Lifecycle.Recover(context.Background(), services.RecoverParams{
		Project: c.ProjectName(),
		EntryID: c.Entry,
		Ranges:  cli.Container.Settings.PortRanges,
	})
	return printResult(result)
}
