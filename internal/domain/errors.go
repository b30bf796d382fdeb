package domain

import "errors"

var (
	ErrAllocationExhausted = errors.New("no free port in range")
	ErrActiveWorktree      = errors.New("worktree is in use, switch away before deleting")
	ErrPathExists          = errors.New("path already exists")
	ErrTrashEntryNotFound  = errors.New("trash entry not found")
	ErrMetadataMissing     = errors.New("trash metadata missing")
	ErrInvalidRange        = errors.New("invalid port range")
	ErrWorktreeNotFound    = errors.New("worktree not found")
)
