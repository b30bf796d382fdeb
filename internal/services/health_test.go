package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/internal/adapters/storage"
	"github.com/arbor-sh/arbor/internal/domain"
)

func TestHealthService_Report(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()

	git := &fakeGit{worktrees: []domain.Worktree{{Path: "/wt/main", Branch: "main"}}}
	allocStore := newFakeAllocationStore()
	require.NoError(t, allocStore.Put(ctx, "shop/main", domain.PortMap{"web": 3000}))
	require.NoError(t, allocStore.Put(ctx, "shop/gone", domain.PortMap{"web": 3001}))

	inspector := &fakeInspector{procs: map[int]string{3000: "node"}}
	allocator := NewAllocatorService(allocStore, &fakeProber{busy: map[int]bool{3000: true}}, inspector, git)

	journal := &fakeJournal{}
	events := NewEventService(journal, 100)
	now := time.Now().Unix()
	events.Append(ctx, domain.Event{Type: domain.EventCreated, Timestamp: now, Data: map[string]any{"worktree": "main"}})

	mover := &storage.RenameMover{}
	trashStore := storage.NewTrashStore(filepath.Join(base, "trash"), mover)
	trash := NewTrashService(trashStore, git, mover)
	trash.cwd = func() (string, error) { return base, nil }
	trash.now = func() time.Time { return time.Unix(1700000000, 0) }

	wt := filepath.Join(base, "worktrees", "old")
	require.NoError(t, writeTestWorktree(wt))
	_, err := trash.SoftDelete(ctx, wt, "feature/old", "/repos/shop.git")
	require.NoError(t, err)

	svc := NewHealthService(allocator, events, trash)
	appender := &fakeAppender{}
	svc.appender = appender

	report, err := svc.Report(ctx, 7, "/repos/shop.git")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Events.Total)
	assert.Equal(t, 2, report.Allocations)
	assert.Equal(t, 1, report.TrashEntries)
	assert.Equal(t, int64(1700000000), report.OldestTrashed)

	require.Len(t, report.Conflicts, 2)

	// Only the occupied conflict becomes an event; orphans are
	// bookkeeping drift, not live contention
	require.Len(t, appender.events, 1)
	assert.Equal(t, domain.EventPortConflict, appender.events[0].Type)
	assert.Equal(t, "shop/main", appender.events[0].Data["key"])
}
