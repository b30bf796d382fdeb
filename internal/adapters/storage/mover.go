package storage

import "os"

// RenameMover moves directories with os.Rename. Failures (including
// cross-device renames) are surfaced raw and never retried, since a
// partially failed move is not safe to repeat.
type RenameMover struct{}

// NewRenameMover creates the default mover.
func NewRenameMover() *RenameMover {
	return &RenameMover{}
}

// Move renames src to dst.
func (RenameMover) Move(src, dst string) error {
	return os.Rename(src, dst)
}
