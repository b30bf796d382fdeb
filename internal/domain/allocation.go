package domain

import (
	"fmt"
	"strings"
)

// PortMap maps a service name to its assigned port for one worktree.
type PortMap map[string]int

// PortRange is an inclusive interval of candidate ports for one service.
type PortRange struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Validate checks the range is within the TCP port space and non-empty.
func (r PortRange) Validate() error {
	if r.Lo < 1 || r.Hi > 65535 || r.Lo > r.Hi {
		return fmt.Errorf("%w: %d-%d", ErrInvalidRange, r.Lo, r.Hi)
	}
	return nil
}

// AllocationKey builds the store key for a (project, branch) pair.
// All key construction goes through here so parsing stays centralized.
func AllocationKey(project, branch string) string {
	return project + "/" + branch
}

// ParseAllocationKey splits a store key back into project and branch.
// Branch names may themselves contain slashes, so only the first
// separator belongs to the project.
func ParseAllocationKey(key string) (project, branch string, err error) {
	idx := strings.Index(key, "/")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", fmt.Errorf("malformed allocation key %q", key)
	}
	return key[:idx], key[idx+1:], nil
}

// Ports returns the allocated port numbers in no particular order.
func (m PortMap) Ports() []int {
	out := make([]int, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

// ConflictKind classifies a stored port that the health scan flagged.
type ConflictKind string

const (
	// ConflictOccupied means the port is allocated in the store but some
	// unmanaged process is bound to it.
	ConflictOccupied ConflictKind = "conflict"
	// ConflictOrphaned means the record has no corresponding live worktree.
	ConflictOrphaned ConflictKind = "orphaned"
)

// PortConflict is one finding from the health conflict scan.
type PortConflict struct {
	Key     string       `json:"key"`
	Service string       `json:"service"`
	Port    int          `json:"port"`
	Kind    ConflictKind `json:"kind"`
	Process string       `json:"process,omitempty"`
}
