package ports

import (
	"context"

	"github.com/arbor-sh/arbor/internal/domain"
)

// AllocationRepository persists port assignments keyed by project/branch.
// Records are replaced whole, never partially mutated.
type AllocationRepository interface {
	Get(ctx context.Context, key string) (domain.PortMap, bool, error)
	Put(ctx context.Context, key string, ports domain.PortMap) error
	Delete(ctx context.Context, key string) (bool, error)
	All(ctx context.Context) (map[string]domain.PortMap, error)
	// Update runs fn over the full record set under the store lock and
	// persists the mutated set if fn returns nil. When fn errors the
	// store is left untouched.
	Update(ctx context.Context, fn func(records map[string]domain.PortMap) error) error
}

// VisibilityRepository persists hidden-branch flags per project, with a
// wildcard "*" project acting as the global default.
type VisibilityRepository interface {
	IsHidden(ctx context.Context, project, branch string) (bool, error)
	Set(ctx context.Context, project, branch string, hidden bool) error
	All(ctx context.Context) (map[string]map[string]bool, error)
}

// EventAppender records one event. Implementations must not fail the
// caller when the durable write fails.
type EventAppender interface {
	Append(ctx context.Context, event domain.Event)
}

// EventJournal is the durable append-only backing file for the ledger.
// Unlike EventAppender, journal writes report their failures; the event
// service decides that those never escalate.
type EventJournal interface {
	Append(ctx context.Context, event domain.Event) error
	ReadAll(ctx context.Context) ([]domain.Event, error)
	Prune(ctx context.Context, cutoff int64) (removed int, err error)
}
