package domain

import (
	"strings"
	"time"
)

// EventType enumerates every lifecycle event the ledger records.
type EventType string

const (
	EventCreated          EventType = "created"
	EventDeleted          EventType = "deleted"
	EventSwitched         EventType = "switched"
	EventRecovered        EventType = "recovered"
	EventPortAllocated    EventType = "port_allocated"
	EventPortReleased     EventType = "port_released"
	EventPortConflict     EventType = "port_conflict"
	EventDockerStarted    EventType = "docker_started"
	EventDockerStopped    EventType = "docker_stopped"
	EventDockerFailed     EventType = "docker_failed"
	EventEnvGenerated     EventType = "env_generated"
	EventClaudeMessage    EventType = "claude_message"
	EventClaudeNeedsInput EventType = "claude_needs_input"
	EventBufferCleanup    EventType = "buffer_cleanup"
	EventHookExecuted     EventType = "hook_executed"
	EventHookFailed       EventType = "hook_failed"
)

var eventTypes = map[EventType]bool{
	EventCreated: true, EventDeleted: true, EventSwitched: true,
	EventRecovered: true, EventPortAllocated: true, EventPortReleased: true,
	EventPortConflict: true, EventDockerStarted: true, EventDockerStopped: true,
	EventDockerFailed: true, EventEnvGenerated: true, EventClaudeMessage: true,
	EventClaudeNeedsInput: true, EventBufferCleanup: true,
	EventHookExecuted: true, EventHookFailed: true,
}

// Valid reports whether t is a member of the closed enumeration.
func (t EventType) Valid() bool {
	return eventTypes[t]
}

// IsError reports whether events of this type count toward the error
// total in health aggregation.
func (t EventType) IsError() bool {
	s := string(t)
	return strings.Contains(s, "failed") ||
		strings.Contains(s, "conflict") ||
		strings.Contains(s, "error")
}

// Event is one immutable record in the append-only ledger.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{Type: t, Timestamp: time.Now().Unix(), Data: data}
}

// Worktree returns the associated worktree name, if the payload has one.
func (e Event) Worktree() string {
	if e.Data == nil {
		return ""
	}
	if v, ok := e.Data["worktree"].(string); ok {
		return v
	}
	return ""
}

// EventFilter narrows a read of the ledger. Zero values match everything.
type EventFilter struct {
	Type     EventType
	Worktree string
	Since    int64 // minimum timestamp, inclusive
}

// Matches reports whether the event passes the filter.
func (f EventFilter) Matches(e Event) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Worktree != "" && e.Worktree() != f.Worktree {
		return false
	}
	if f.Since > 0 && e.Timestamp < f.Since {
		return false
	}
	return true
}

// EventStats is the derived aggregate view consumed by health reporting.
type EventStats struct {
	Total      int               `json:"total"`
	ByType     map[EventType]int `json:"by_type"`
	ByWorktree map[string]int    `json:"by_worktree"`
	Errors     int               `json:"errors"`
}
