package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-sh/arbor/internal/domain"
)

func newTestAllocator(store *fakeAllocationStore, prober *fakeProber, git *fakeGit) (*AllocatorService, *fakeInspector) {
	if prober == nil {
		prober = &fakeProber{}
	}
	if git == nil {
		git = &fakeGit{}
	}
	inspector := &fakeInspector{}
	return NewAllocatorService(store, prober, inspector, git), inspector
}

func TestAllocatorService_Allocate(t *testing.T) {
	ranges := map[string]domain.PortRange{
		"web": {Lo: 3000, Hi: 3010},
		"api": {Lo: 3000, Hi: 3010},
	}

	t.Run("assigns lowest free ports in service order", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, nil, nil)

		got, err := svc.Allocate(context.Background(), "shop", "feature/cart", ranges)
		require.NoError(t, err)
		assert.Equal(t, domain.PortMap{"api": 3000, "web": 3001}, got)
	})

	t.Run("skips ports bound at the OS level", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, &fakeProber{busy: map[int]bool{3000: true}}, nil)

		got, err := svc.Allocate(context.Background(), "shop", "main", map[string]domain.PortRange{
			"web": {Lo: 3000, Hi: 3010},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PortMap{"web": 3001}, got)
	})

	t.Run("never reuses ports held by other branches", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, nil, nil)

		first, err := svc.Allocate(context.Background(), "shop", "main", ranges)
		require.NoError(t, err)
		second, err := svc.Allocate(context.Background(), "shop", "feature/cart", ranges)
		require.NoError(t, err)

		seen := make(map[int]bool)
		for _, p := range first {
			seen[p] = true
		}
		for _, p := range second {
			assert.False(t, seen[p], "port %d assigned twice", p)
		}
	})

	t.Run("repeated call returns the existing record unchanged", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, nil, nil)

		first, err := svc.Allocate(context.Background(), "shop", "main", ranges)
		require.NoError(t, err)
		again, err := svc.Allocate(context.Background(), "shop", "main", ranges)
		require.NoError(t, err)
		assert.Equal(t, first, again)

		all, err := store.All(context.Background())
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("exhaustion persists nothing", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, &fakeProber{busy: map[int]bool{3000: true, 3001: true}}, nil)

		_, err := svc.Allocate(context.Background(), "shop", "main", map[string]domain.PortRange{
			"db":  {Lo: 3000, Hi: 3001},
			"web": {Lo: 3000, Hi: 3001},
		})
		require.ErrorIs(t, err, domain.ErrAllocationExhausted)

		_, found, err := svc.Get(context.Background(), "shop", "main")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("partial exhaustion persists nothing either", func(t *testing.T) {
		// web fits, db can't; neither may survive
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, &fakeProber{busy: map[int]bool{4000: true}}, nil)

		_, err := svc.Allocate(context.Background(), "shop", "main", map[string]domain.PortRange{
			"db":  {Lo: 4000, Hi: 4000},
			"web": {Lo: 3000, Hi: 3010},
		})
		require.ErrorIs(t, err, domain.ErrAllocationExhausted)

		all, err := store.All(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("invalid range rejected before any scan", func(t *testing.T) {
		store := newFakeAllocationStore()
		svc, _ := newTestAllocator(store, nil, nil)

		_, err := svc.Allocate(context.Background(), "shop", "main", map[string]domain.PortRange{
			"web": {Lo: 5000, Hi: 4000},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})
}

func TestAllocatorService_Release(t *testing.T) {
	store := newFakeAllocationStore()
	svc, _ := newTestAllocator(store, nil, nil)

	_, err := svc.Allocate(context.Background(), "shop", "main", map[string]domain.PortRange{
		"web": {Lo: 3000, Hi: 3010},
	})
	require.NoError(t, err)

	released, err := svc.Release(context.Background(), "shop", "main")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = svc.Release(context.Background(), "shop", "main")
	require.NoError(t, err)
	assert.False(t, released)

	// released ports become assignable again
	got, err := svc.Allocate(context.Background(), "shop", "feature/cart", map[string]domain.PortRange{
		"web": {Lo: 3000, Hi: 3010},
	})
	require.NoError(t, err)
	assert.Equal(t, 3000, got["web"])
}

func TestAllocatorService_Conflicts(t *testing.T) {
	ctx := context.Background()

	seed := func(store *fakeAllocationStore) {
		require.NoError(t, store.Put(ctx, "shop/main", domain.PortMap{"web": 3000}))
		require.NoError(t, store.Put(ctx, "shop/feature/cart", domain.PortMap{"web": 3001}))
	}

	t.Run("classifies occupied and orphaned", func(t *testing.T) {
		store := newFakeAllocationStore()
		seed(store)
		git := &fakeGit{worktrees: []domain.Worktree{{Path: "/wt/main", Branch: "main"}}}
		svc, inspector := newTestAllocator(store, &fakeProber{busy: map[int]bool{3000: true}}, git)
		inspector.procs = map[int]string{3000: "node"}

		conflicts, err := svc.Conflicts(ctx, "/repos/shop.git")
		require.NoError(t, err)
		require.Len(t, conflicts, 2)

		assert.Equal(t, "shop/feature/cart", conflicts[0].Key)
		assert.Equal(t, domain.ConflictOrphaned, conflicts[0].Kind)
		assert.Equal(t, "shop/main", conflicts[1].Key)
		assert.Equal(t, domain.ConflictOccupied, conflicts[1].Kind)
		assert.Equal(t, "node", conflicts[1].Process)
	})

	t.Run("managed processes are not conflicts", func(t *testing.T) {
		store := newFakeAllocationStore()
		require.NoError(t, store.Put(ctx, "shop/main", domain.PortMap{"web": 3000}))
		git := &fakeGit{worktrees: []domain.Worktree{{Path: "/wt/main", Branch: "main"}}}
		svc, inspector := newTestAllocator(store, &fakeProber{busy: map[int]bool{3000: true}}, git)
		inspector.procs = map[int]string{3000: "docker-proxy"}

		conflicts, err := svc.Conflicts(ctx, "/repos/shop.git")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})

	t.Run("listing failure disables orphan detection only", func(t *testing.T) {
		store := newFakeAllocationStore()
		seed(store)
		git := &fakeGit{listErr: assert.AnError}
		svc, inspector := newTestAllocator(store, &fakeProber{busy: map[int]bool{3001: true}}, git)
		inspector.procs = map[int]string{3001: "python"}

		conflicts, err := svc.Conflicts(ctx, "/repos/shop.git")
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, domain.ConflictOccupied, conflicts[0].Kind)
		assert.Equal(t, 3001, conflicts[0].Port)
	})

	t.Run("clean state reports nothing", func(t *testing.T) {
		store := newFakeAllocationStore()
		require.NoError(t, store.Put(ctx, "shop/main", domain.PortMap{"web": 3000}))
		git := &fakeGit{worktrees: []domain.Worktree{{Path: "/wt/main", Branch: "main"}}}
		svc, _ := newTestAllocator(store, nil, git)

		conflicts, err := svc.Conflicts(ctx, "/repos/shop.git")
		require.NoError(t, err)
		assert.Empty(t, conflicts)
	})
}
