package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/ports"
)

// StepResult records the outcome of one sub-step of a lifecycle
// operation.
type StepResult struct {
	Name    string
	Ok      bool
	Skipped bool
	Message string
}

// Result aggregates a whole lifecycle operation into the single
// user-facing notification: what succeeded, what was skipped, what
// failed.
type Result struct {
	Op     string
	Target string
	Steps  []StepResult
}

func (r *Result) step(name string, ok bool, message string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Ok: ok, Message: message})
}

func (r *Result) skip(name, message string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Ok: true, Skipped: true, Message: message})
}

// Ok reports whether every step succeeded.
func (r Result) Ok() bool {
	for _, s := range r.Steps {
		if !s.Ok {
			return false
		}
	}
	return true
}

// String renders the aggregated notification.
func (r Result) String() string {
	var b strings.Builder
	if r.Ok() {
		fmt.Fprintf(&b, "%s %s succeeded", r.Op, r.Target)
	} else {
		fmt.Fprintf(&b, "%s %s finished with errors", r.Op, r.Target)
	}
	for _, s := range r.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(&b, "\n  - %s: skipped (%s)", s.Name, s.Message)
		case s.Ok:
			fmt.Fprintf(&b, "\n  - %s: %s", s.Name, s.Message)
		default:
			fmt.Fprintf(&b, "\n  - %s: FAILED: %s", s.Name, s.Message)
		}
	}
	return b.String()
}

// CreateParams describes a worktree creation request.
type CreateParams struct {
	Project  string
	Branch   string
	BareRepo string
	Path     string
	Ranges   map[string]domain.PortRange
}

// DeleteParams describes a worktree soft-delete request.
type DeleteParams struct {
	Project  string
	Branch   string
	BareRepo string
	Path     string
}

// RecoverParams describes a trash recovery request.
type RecoverParams struct {
	Project string
	EntryID string
	Ranges  map[string]domain.PortRange
}

// LifecycleService orchestrates worktree create/delete/recover across
// the allocator, the trash manager, and the event ledger. It is the
// only writer of lifecycle state; health consumers stay read-only.
type LifecycleService struct {
	allocator *AllocatorService
	trash     *TrashService
	events    ports.EventAppender
	git       ports.GitWorktrees
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(allocator *AllocatorService, trash *TrashService, events ports.EventAppender, git ports.GitWorktrees) *LifecycleService {
	return &LifecycleService{
		allocator: allocator,
		trash:     trash,
		events:    events,
		git:       git,
	}
}

// Create adds the worktree, then reserves its ports. When allocation
// fails the worktree add is undone so neither side persists.
func (s *LifecycleService) Create(ctx context.Context, p CreateParams) Result {
	result := Result{Op: "create", Target: domain.AllocationKey(p.Project, p.Branch)}

	if err := s.git.Add(ctx, p.BareRepo, p.Path, p.Branch); err != nil {
		result.step("worktree", false, err.Error())
		return result
	}
	result.step("worktree", true, fmt.Sprintf("created at %s", p.Path))

	if len(p.Ranges) == 0 {
		result.skip("ports", "no port ranges configured")
	} else {
		allocated, err := s.allocator.Allocate(ctx, p.Project, p.Branch, p.Ranges)
		if err != nil {
			// All-or-nothing: undo the worktree so create leaves no trace
			if rmErr := s.git.Remove(ctx, p.BareRepo, p.Path); rmErr != nil {
				result.step("ports", false, fmt.Sprintf("%v (worktree rollback also failed: %v)", err, rmErr))
				return result
			}
			result.step("ports", false, err.Error())
			result.step("worktree rollback", true, "removed again")
			return result
		}
		result.step("ports", true, formatPorts(allocated))
		s.events.Append(ctx, domain.NewEvent(domain.EventPortAllocated, map[string]any{
			"worktree": p.Branch,
			"project":  p.Project,
			"ports":    allocated,
		}))
	}

	s.events.Append(ctx, domain.NewEvent(domain.EventCreated, map[string]any{
		"worktree": p.Branch,
		"project":  p.Project,
		"path":     p.Path,
	}))
	return result
}

// Delete soft-deletes the worktree, then releases its ports. The trash
// move runs first so precondition violations reject before any mutation.
func (s *LifecycleService) Delete(ctx context.Context, p DeleteParams) Result {
	result := Result{Op: "delete", Target: domain.AllocationKey(p.Project, p.Branch)}

	entry, err := s.trash.SoftDelete(ctx, p.Path, p.Branch, p.BareRepo)
	if err != nil {
		result.step("trash", false, err.Error())
		return result
	}
	result.step("trash", true, fmt.Sprintf("recoverable as %s", entry.ID))

	released, err := s.allocator.Release(ctx, p.Project, p.Branch)
	switch {
	case err != nil:
		result.step("ports", false, err.Error())
	case released:
		result.step("ports", true, "released")
		s.events.Append(ctx, domain.NewEvent(domain.EventPortReleased, map[string]any{
			"worktree": p.Branch,
			"project":  p.Project,
		}))
	default:
		result.skip("ports", "nothing allocated")
	}

	s.events.Append(ctx, domain.NewEvent(domain.EventDeleted, map[string]any{
		"worktree": p.Branch,
		"project":  p.Project,
		"entry":    entry.ID,
	}))
	return result
}

// Recover restores a trashed worktree and re-reserves its ports. Port
// exhaustion degrades the result instead of undoing the recovery.
func (s *LifecycleService) Recover(ctx context.Context, p RecoverParams) Result {
	result := Result{Op: "recover", Target: p.EntryID}

	entry, err := s.trash.Recover(ctx, p.EntryID)
	if err != nil {
		result.step("trash", false, err.Error())
		return result
	}
	result.Target = domain.AllocationKey(p.Project, entry.Branch)
	result.step("trash", true, fmt.Sprintf("restored to %s", entry.OriginalPath))

	if len(p.Ranges) == 0 {
		result.skip("ports", "no port ranges configured")
	} else {
		allocated, err := s.allocator.Allocate(ctx, p.Project, entry.Branch, p.Ranges)
		if err != nil {
			result.step("ports", false, err.Error())
		} else {
			result.step("ports", true, formatPorts(allocated))
			s.events.Append(ctx, domain.NewEvent(domain.EventPortAllocated, map[string]any{
				"worktree": entry.Branch,
				"project":  p.Project,
				"ports":    allocated,
			}))
		}
	}

	s.events.Append(ctx, domain.NewEvent(domain.EventRecovered, map[string]any{
		"worktree": entry.Branch,
		"project":  p.Project,
		"path":     entry.OriginalPath,
	}))
	return result
}

func formatPorts(ports domain.PortMap) string {
	services := make([]string, 0, len(ports))
	for service := range ports {
		services = append(services, service)
	}
	sort.Strings(services)

	parts := make([]string, 0, len(services))
	for _, service := range services {
		parts = append(parts, fmt.Sprintf("%s=%d", service, ports[service]))
	}
	return strings.Join(parts, " ")
}
