package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/internal/ports"
)

// AllocatorService hands out non-conflicting port assignments per
// (project, branch) and persists them in the allocation store.
type AllocatorService struct {
	store     ports.AllocationRepository
	prober    ports.PortProber
	inspector ports.ProcessInspector
	git       ports.GitWorktrees
}

// NewAllocatorService creates a new AllocatorService.
func NewAllocatorService(store ports.AllocationRepository, prober ports.PortProber, inspector ports.ProcessInspector, git ports.GitWorktrees) *AllocatorService {
	return &AllocatorService{
		store:     store,
		prober:    prober,
		inspector: inspector,
		git:       git,
	}
}

// Allocate assigns one port per service from the given ranges. Calling
// it again for the same key returns the existing record unchanged. On
// exhaustion nothing is persisted. The whole read-scan-persist section
// runs under the store lock; liveness probes against processes outside
// the store remain best effort.
func (s *AllocatorService) Allocate(ctx context.Context, project, branch string, ranges map[string]domain.PortRange) (domain.PortMap, error) {
	key := domain.AllocationKey(project, branch)

	for service, r := range ranges {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("service %s: %w", service, err)
		}
	}

	var result domain.PortMap
	err := s.store.Update(ctx, func(records map[string]domain.PortMap) error {
		if existing, ok := records[key]; ok {
			result = existing
			return nil
		}

		inUse := make(map[int]bool)
		for _, rec := range records {
			for _, p := range rec {
				inUse[p] = true
			}
		}

		allocated := domain.PortMap{}

		// Deterministic service order so repeated exhaustion failures
		// report the same service
		services := make([]string, 0, len(ranges))
		for name := range ranges {
			services = append(services, name)
		}
		sort.Strings(services)

		for _, service := range services {
			r := ranges[service]
			port, ok := s.findFree(ctx, r, inUse)
			if !ok {
				return fmt.Errorf("%w for service %s (%d-%d)",
					domain.ErrAllocationExhausted, service, r.Lo, r.Hi)
			}
			allocated[service] = port
			inUse[port] = true
		}

		records[key] = allocated
		result = allocated
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("Ports allocated", "key", key, "ports", result)
	return result, nil
}

func (s *AllocatorService) findFree(ctx context.Context, r domain.PortRange, inUse map[int]bool) (int, bool) {
	for port := r.Lo; port <= r.Hi; port++ {
		if inUse[port] {
			continue
		}
		if !s.prober.IsFree(ctx, port) {
			logging.Logger.Debug("Skipping bound port", "port", port)
			continue
		}
		return port, true
	}
	return 0, false
}

// Release removes the record for (project, branch). Releasing a key
// that doesn't exist returns false, not an error.
func (s *AllocatorService) Release(ctx context.Context, project, branch string) (bool, error) {
	key := domain.AllocationKey(project, branch)
	released, err := s.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	if released {
		logging.Logger.Info("Ports released", "key", key)
	}
	return released, nil
}

// Get returns the record for (project, branch), if any.
func (s *AllocatorService) Get(ctx context.Context, project, branch string) (domain.PortMap, bool, error) {
	return s.store.Get(ctx, domain.AllocationKey(project, branch))
}

// All returns every stored allocation record.
func (s *AllocatorService) All(ctx context.Context) (map[string]domain.PortMap, error) {
	return s.store.All(ctx)
}

// scanParallelism bounds concurrent liveness probes during a conflict scan.
const scanParallelism = 8

// managedProcesses are processes expected to hold allocated ports on
// behalf of a worktree's services.
var managedProcesses = map[string]bool{
	"docker-proxy": true,
	"com.docker.b": true, // macOS truncated lsof name for the docker backend
	"docker":       true,
}

// Conflicts probes every stored port and classifies findings: a port
// occupied by an unmanaged process is a conflict, a record whose
// worktree no longer exists is orphaned. Read path only; allocation
// never consults this.
func (s *AllocatorService) Conflicts(ctx context.Context, bareRepo string) ([]domain.PortConflict, error) {
	records, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	liveBranches := make(map[string]bool)
	liveKnown := false
	if bareRepo != "" {
		worktrees, err := s.git.List(ctx, bareRepo)
		if err != nil {
			// Without a worktree list we can't tell orphans apart, so
			// only occupancy conflicts are reported this round
			logging.Logger.Warn("Worktree listing failed during conflict scan", "error", err)
		} else {
			liveKnown = true
			for _, wt := range worktrees {
				liveBranches[wt.Branch] = true
			}
		}
	}

	type probeItem struct {
		key     string
		service string
		port    int
		branch  string
	}
	var items []probeItem
	for key, rec := range records {
		_, branch, err := domain.ParseAllocationKey(key)
		if err != nil {
			logging.Logger.Warn("Skipping malformed allocation key", "key", key)
			continue
		}
		for service, port := range rec {
			items = append(items, probeItem{key: key, service: service, port: port, branch: branch})
		}
	}

	results := make([]*domain.PortConflict, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if liveKnown && !liveBranches[item.branch] {
				results[i] = &domain.PortConflict{
					Key:     item.key,
					Service: item.service,
					Port:    item.port,
					Kind:    domain.ConflictOrphaned,
				}
				return nil
			}
			if !s.prober.IsFree(gctx, item.port) {
				process, found := s.inspector.ProcessOnPort(gctx, item.port)
				if found && managedProcesses[process] {
					// The worktree's own service holds the port; that's
					// the expected state, not a conflict
					return nil
				}
				results[i] = &domain.PortConflict{
					Key:     item.key,
					Service: item.service,
					Port:    item.port,
					Kind:    domain.ConflictOccupied,
					Process: process,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var conflicts []domain.PortConflict
	for _, r := range results {
		if r != nil {
			conflicts = append(conflicts, *r)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].Key != conflicts[j].Key {
			return conflicts[i].Key < conflicts[j].Key
		}
		return conflicts[i].Port < conflicts[j].Port
	})
	return conflicts, nil
}
