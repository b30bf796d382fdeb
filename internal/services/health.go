package services

import (
	"context"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/ports"
)

// HealthService derives the read-only summary view over the allocation
// and event stores. It never mutates lifecycle state; the only thing it
// writes is port-conflict events when a scan finds conflicts.
type HealthService struct {
	allocator *AllocatorService
	events    *EventService
	trash     *TrashService
	appender  ports.EventAppender
}

// NewHealthService creates a new HealthService.
func NewHealthService(allocator *AllocatorService, events *EventService, trash *TrashService) *HealthService {
	return &HealthService{
		allocator: allocator,
		events:    events,
		trash:     trash,
		appender:  events,
	}
}

// Report builds the health summary for the trailing window.
func (s *HealthService) Report(ctx context.Context, windowDays int, bareRepo string) (*domain.HealthReport, error) {
	stats, err := s.events.Stats(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.allocator.Conflicts(ctx, bareRepo)
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		if c.Kind != domain.ConflictOccupied {
			continue
		}
		s.appender.Append(ctx, domain.NewEvent(domain.EventPortConflict, map[string]any{
			"key":     c.Key,
			"service": c.Service,
			"port":    c.Port,
			"process": c.Process,
		}))
	}

	allocations, err := s.allocator.All(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.trash.List(ctx)
	if err != nil {
		return nil, err
	}
	var oldest int64
	for _, e := range entries {
		if oldest == 0 || e.DeletedAt < oldest {
			oldest = e.DeletedAt
		}
	}

	return &domain.HealthReport{
		Events:        stats,
		Conflicts:     conflicts,
		Allocations:   len(allocations),
		TrashEntries:  len(entries),
		OldestTrashed: oldest,
	}, nil
}
