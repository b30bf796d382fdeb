package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
	"github.com/arbor-sh/arbor/internal/ports"
)

// ringEvent is one in-memory entry; durable marks whether the journal
// write succeeded, so reads don't double-count flushed events.
type ringEvent struct {
	event   domain.Event
	durable bool
}

// EventService is the append-only ledger: a bounded in-memory ring that
// always accepts events, backed by the durable journal. Observability
// never blocks a lifecycle operation, so journal failures are logged
// and swallowed.
type EventService struct {
	journal ports.EventJournal

	mu   sync.Mutex
	ring []ringEvent
	size int
}

// NewEventService creates a ledger with the given ring capacity.
func NewEventService(journal ports.EventJournal, bufferSize int) *EventService {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &EventService{journal: journal, size: bufferSize}
}

// Append records the event. It cannot fail: the ring always takes the
// event, and a failed durable write only logs.
func (s *EventService) Append(ctx context.Context, event domain.Event) {
	durable := true
	if err := s.journal.Append(ctx, event); err != nil {
		durable = false
		logging.Logger.Error("Durable event write failed", "type", event.Type, "error", err)
	}

	s.mu.Lock()
	s.ring = append(s.ring, ringEvent{event: event, durable: durable})
	if len(s.ring) > s.size {
		s.ring = s.ring[len(s.ring)-s.size:]
	}
	s.mu.Unlock()
}

// ReadRecent returns up to count matching events, most recent first.
// Events that never reached the journal are merged in from the ring.
func (s *EventService) ReadRecent(ctx context.Context, count int, filter domain.EventFilter) ([]domain.Event, error) {
	events, err := s.journal.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, r := range s.ring {
		if !r.durable {
			events = append(events, r.event)
		}
	}
	s.mu.Unlock()

	// File order is append order; a stable sort by timestamp reconciles
	// interleaved writers without reordering same-second events
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp < events[j].Timestamp
	})

	var out []domain.Event
	for i := len(events) - 1; i >= 0 && len(out) < count; i-- {
		if filter.Matches(events[i]) {
			out = append(out, events[i])
		}
	}
	return out, nil
}

// Prune rewrites the journal keeping only events newer than olderThanDays.
func (s *EventService) Prune(ctx context.Context, olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays).Unix()
	removed, err := s.journal.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	kept := s.ring[:0]
	for _, r := range s.ring {
		if r.event.Timestamp >= cutoff {
			kept = append(kept, r)
		}
	}
	s.ring = kept
	s.mu.Unlock()

	if removed > 0 {
		logging.Logger.Info("Pruned events", "removed", removed, "older_than_days", olderThanDays)
	}
	return removed, nil
}

// Stats aggregates events within the trailing window for health
// reporting: totals, per-type and per-worktree counts, and an error
// count from type-name matching.
func (s *EventService) Stats(ctx context.Context, windowDays int) (domain.EventStats, error) {
	since := int64(0)
	if windowDays > 0 {
		since = time.Now().AddDate(0, 0, -windowDays).Unix()
	}

	events, err := s.journal.ReadAll(ctx)
	if err != nil {
		return domain.EventStats{}, err
	}
	s.mu.Lock()
	for _, r := range s.ring {
		if !r.durable {
			events = append(events, r.event)
		}
	}
	s.mu.Unlock()

	stats := domain.EventStats{
		ByType:     make(map[domain.EventType]int),
		ByWorktree: make(map[string]int),
	}
	for _, e := range events {
		if e.Timestamp < since {
			continue
		}
		stats.Total++
		stats.ByType[e.Type]++
		if wt := e.Worktree(); wt != "" {
			stats.ByWorktree[wt]++
		}
		if e.Type.IsError() {
			stats.Errors++
		}
	}
	return stats, nil
}
