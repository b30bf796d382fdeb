package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBareRepo(t *testing.T, adminDirs ...string) string {
	t.Helper()
	bare := filepath.Join(t.TempDir(), "shop.git")
	for _, d := range adminDirs {
		require.NoError(t, os.MkdirAll(filepath.Join(bare, "worktrees", d), 0755))
	}
	return bare
}

func TestCLIWorktrees_AdminDirs(t *testing.T) {
	g := NewCLIWorktrees()
	ctx := context.Background()

	t.Run("lists directory names", func(t *testing.T) {
		bare := makeBareRepo(t, "login", "cart")
		// stray files don't count
		require.NoError(t, os.WriteFile(filepath.Join(bare, "worktrees", "junk.txt"), []byte("x"), 0644))

		dirs, err := g.AdminDirs(ctx, bare)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"login", "cart"}, dirs)
	})

	t.Run("no worktrees dir means no admin dirs", func(t *testing.T) {
		bare := filepath.Join(t.TempDir(), "empty.git")
		require.NoError(t, os.MkdirAll(bare, 0755))

		dirs, err := g.AdminDirs(ctx, bare)
		require.NoError(t, err)
		assert.Nil(t, dirs)
	})
}

func TestCLIWorktrees_BackPointer(t *testing.T) {
	g := NewCLIWorktrees()
	ctx := context.Background()
	bare := makeBareRepo(t, "login")

	require.NoError(t, os.WriteFile(
		filepath.Join(bare, "worktrees", "login", "gitdir"),
		[]byte("/home/dev/worktrees/shop/login/.git\n"), 0644))

	target, err := g.BackPointer(ctx, bare, "login")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/worktrees/shop/login", target)

	_, err = g.BackPointer(ctx, bare, "missing")
	assert.Error(t, err)
}

func TestCLIWorktrees_Relink(t *testing.T) {
	g := NewCLIWorktrees()
	ctx := context.Background()
	bare := makeBareRepo(t, "login")

	worktree := filepath.Join(t.TempDir(), "login")
	require.NoError(t, os.MkdirAll(worktree, 0755))

	require.NoError(t, g.Relink(ctx, bare, "login", worktree))

	gitFile, err := os.ReadFile(filepath.Join(worktree, ".git"))
	require.NoError(t, err)
	assert.Equal(t, "gitdir: "+filepath.Join(bare, "worktrees", "login")+"\n", string(gitFile))

	backPointer, err := os.ReadFile(filepath.Join(bare, "worktrees", "login", "gitdir"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(worktree, ".git")+"\n", string(backPointer))

	// Both pointers must round-trip
	target, err := g.BackPointer(ctx, bare, "login")
	require.NoError(t, err)
	assert.Equal(t, worktree, target)
}

func TestCLIWorktrees_RelinkMissingAdminDir(t *testing.T) {
	g := NewCLIWorktrees()
	bare := makeBareRepo(t)

	err := g.Relink(context.Background(), bare, "ghost", t.TempDir())
	assert.ErrorContains(t, err, "not accessible")
}
