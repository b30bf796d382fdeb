package domain

// Worktree is a snapshot of one live checkout as reported by git.
// The worktree itself is an external entity; this is bookkeeping only.
type Worktree struct {
	Path   string `json:"path"`
	Branch string `json:"branch"`
}

// HealthReport is the read-only summary exposed to monitoring callers.
type HealthReport struct {
	Events        EventStats     `json:"events"`
	Conflicts     []PortConflict `json:"conflicts,omitempty"`
	Allocations   int            `json:"allocations"`
	TrashEntries  int            `json:"trash_entries"`
	OldestTrashed int64          `json:"oldest_trashed,omitempty"`
}
