package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/internal/domain"
)

func newTestTrashStore(t *testing.T) (*TrashStore, string) {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "trash")
	return NewTrashStore(root, &RenameMover{}), base
}

func makeWorktreeDir(t *testing.T, base, name string) string {
	t.Helper()
	path := filepath.Join(base, name)
	require.NoError(t, os.MkdirAll(filepath.Join(path, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "src", "main.go"), []byte("package main\n"), 0644))
	return path
}

func TestTrashStore_MoveInAndMetadataRoundTrip(t *testing.T) {
	store, base := newTestTrashStore(t)
	src := makeWorktreeDir(t, base, "feature-login")

	dst, err := store.MoveIn(context.Background(), src, "feature-login-1700000000")
	require.NoError(t, err)

	assert.NoDirExists(t, src)
	assert.FileExists(t, filepath.Join(dst, "src", "main.go"))

	entry := domain.TrashEntry{
		OriginalPath: src,
		Branch:       "feature/login",
		BareRepo:     "/repos/api.git",
		DeletedAt:    1700000000,
		LastCommit:   "abc1234 fix login",
		FilesCount:   1,
	}
	require.NoError(t, store.WriteMetadata(context.Background(), "feature-login-1700000000", entry))

	got, err := store.ReadMetadata(context.Background(), "feature-login-1700000000")
	require.NoError(t, err)
	assert.Equal(t, "feature-login-1700000000", got.ID)
	assert.Equal(t, "feature/login", got.Branch)
	assert.Equal(t, src, got.OriginalPath)
	assert.Equal(t, int64(1700000000), got.DeletedAt)
}

func TestTrashStore_MoveInRejectsExistingEntry(t *testing.T) {
	store, base := newTestTrashStore(t)
	first := makeWorktreeDir(t, base, "one")
	second := makeWorktreeDir(t, base, "two")

	_, err := store.MoveIn(context.Background(), first, "feat-1")
	require.NoError(t, err)

	_, err = store.MoveIn(context.Background(), second, "feat-1")
	assert.ErrorContains(t, err, "already exists")
	assert.DirExists(t, second)
}

func TestTrashStore_MoveOutStripsMetadata(t *testing.T) {
	store, base := newTestTrashStore(t)
	src := makeWorktreeDir(t, base, "feature-login")

	_, err := store.MoveIn(context.Background(), src, "feat-1")
	require.NoError(t, err)
	require.NoError(t, store.WriteMetadata(context.Background(), "feat-1", domain.TrashEntry{
		OriginalPath: src,
		Branch:       "feature/login",
		DeletedAt:    1700000000,
	}))

	restored := filepath.Join(base, "restored")
	require.NoError(t, store.MoveOut(context.Background(), "feat-1", restored))

	assert.FileExists(t, filepath.Join(restored, "src", "main.go"))
	assert.NoFileExists(t, filepath.Join(restored, metadataFile))
	assert.NoDirExists(t, store.EntryPath("feat-1"))
}

func TestTrashStore_MoveOutMissingEntry(t *testing.T) {
	store, _ := newTestTrashStore(t)

	err := store.MoveOut(context.Background(), "nope", filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, domain.ErrTrashEntryNotFound)
}

func TestTrashStore_ReadMetadataErrors(t *testing.T) {
	store, base := newTestTrashStore(t)

	t.Run("entry directory missing", func(t *testing.T) {
		_, err := store.ReadMetadata(context.Background(), "ghost")
		assert.ErrorIs(t, err, domain.ErrTrashEntryNotFound)
	})

	t.Run("payload present but metadata missing", func(t *testing.T) {
		src := makeWorktreeDir(t, base, "no-meta")
		_, err := store.MoveIn(context.Background(), src, "no-meta-1")
		require.NoError(t, err)

		_, err = store.ReadMetadata(context.Background(), "no-meta-1")
		assert.ErrorIs(t, err, domain.ErrMetadataMissing)
	})

	t.Run("malformed metadata", func(t *testing.T) {
		src := makeWorktreeDir(t, base, "bad-meta")
		dst, err := store.MoveIn(context.Background(), src, "bad-meta-1")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, metadataFile), []byte("{broken"), 0644))

		_, err = store.ReadMetadata(context.Background(), "bad-meta-1")
		assert.ErrorIs(t, err, domain.ErrMetadataMissing)
	})
}

func TestTrashStore_ListNewestFirstSkippingBroken(t *testing.T) {
	store, base := newTestTrashStore(t)
	ctx := context.Background()

	for i, spec := range []struct {
		id        string
		deletedAt int64
	}{
		{"old-1", 100},
		{"new-1", 300},
		{"mid-1", 200},
	} {
		src := makeWorktreeDir(t, base, spec.id+"-src")
		_, err := store.MoveIn(ctx, src, spec.id)
		require.NoError(t, err, "entry %d", i)
		require.NoError(t, store.WriteMetadata(ctx, spec.id, domain.TrashEntry{
			OriginalPath: src,
			Branch:       spec.id,
			DeletedAt:    spec.deletedAt,
		}))
	}

	// entry without metadata is skipped, payload untouched
	orphanSrc := makeWorktreeDir(t, base, "orphan-src")
	_, err := store.MoveIn(ctx, orphanSrc, "orphan-1")
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "new-1", entries[0].ID)
	assert.Equal(t, "mid-1", entries[1].ID)
	assert.Equal(t, "old-1", entries[2].ID)
	assert.Greater(t, entries[0].DiskSize, int64(0))
	assert.DirExists(t, store.EntryPath("orphan-1"))
}

func TestTrashStore_Remove(t *testing.T) {
	store, base := newTestTrashStore(t)
	src := makeWorktreeDir(t, base, "doomed")

	_, err := store.MoveIn(context.Background(), src, "doomed-1")
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), "doomed-1"))
	assert.NoDirExists(t, store.EntryPath("doomed-1"))

	err = store.Remove(context.Background(), "doomed-1")
	assert.ErrorIs(t, err, domain.ErrTrashEntryNotFound)
}

func TestTrashStore_ListEmptyRoot(t *testing.T) {
	store, _ := newTestTrashStore(t)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entries)
}
