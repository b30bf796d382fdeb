package ports

import "context"

// PortProber answers whether a TCP port is currently unbound at the
// operating-system level.
type PortProber interface {
	IsFree(ctx context.Context, port int) bool
}

// ProcessInspector identifies the process bound to a port, for conflict
// classification in health reports.
type ProcessInspector interface {
	ProcessOnPort(ctx context.Context, port int) (name string, found bool)
	// Clear drops any cached lookups.
	Clear()
}

// Mover moves a directory tree. Implementations must not retry partial
// failures; the raw error is surfaced to the caller.
type Mover interface {
	Move(src, dst string) error
}
