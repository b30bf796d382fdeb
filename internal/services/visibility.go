package services

import (
	"context"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/internal/ports"
)

// visibilityCache holds one fetched snapshot of the visibility map with
// an explicit TTL, owned by the service instance rather than living as
// ambient package state.
type visibilityCache struct {
	value     map[string]map[string]bool
	fetchedAt time.Time
	ttl       time.Duration
}

func (c *visibilityCache) fresh(now time.Time) bool {
	return c.value != nil && now.Sub(c.fetchedAt) < c.ttl
}

// VisibilityService toggles and resolves hidden-branch flags. Reads go
// through a TTL cache so pickers polling the flag don't hammer the
// store; writes invalidate it.
type VisibilityService struct {
	store ports.VisibilityRepository

	mu    sync.Mutex
	cache visibilityCache
}

// NewVisibilityService creates a service with the given cache TTL.
func NewVisibilityService(store ports.VisibilityRepository, cacheTTL time.Duration) *VisibilityService {
	return &VisibilityService{
		store: store,
		cache: visibilityCache{ttl: cacheTTL},
	}
}

// IsHidden resolves the flag for (project, branch); a project-specific
// record overrides the wildcard project.
func (s *VisibilityService) IsHidden(ctx context.Context, project, branch string) (bool, error) {
	m, err := s.snapshot(ctx)
	if err != nil {
		return false, err
	}
	if branches, ok := m[project]; ok {
		if v, ok := branches[branch]; ok {
			return v, nil
		}
	}
	if branches, ok := m["*"]; ok {
		return branches[branch], nil
	}
	return false, nil
}

// Hide marks (project, branch) hidden. Project "*" sets the global default.
func (s *VisibilityService) Hide(ctx context.Context, project, branch string) error {
	if err := s.store.Set(ctx, project, branch, true); err != nil {
		return err
	}
	s.Clear()
	return nil
}

// Show clears the flag; the record is deleted rather than stored false.
func (s *VisibilityService) Show(ctx context.Context, project, branch string) error {
	if err := s.store.Set(ctx, project, branch, false); err != nil {
		return err
	}
	s.Clear()
	return nil
}

// All returns the current visibility map, bypassing the cache.
func (s *VisibilityService) All(ctx context.Context) (map[string]map[string]bool, error) {
	return s.store.All(ctx)
}

// Clear drops the cached snapshot.
func (s *VisibilityService) Clear() {
	s.mu.Lock()
	s.cache.value = nil
	s.mu.Unlock()
}

func (s *VisibilityService) snapshot(ctx context.Context) (map[string]map[string]bool, error) {
	s.mu.Lock()
	if s.cache.fresh(time.Now()) {
		m := s.cache.value
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	m, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache.value = m
	s.cache.fetchedAt = time.Now()
	s.mu.Unlock()
	return m, nil
}
