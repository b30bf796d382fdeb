package storage

import (
	"context"
)

// WildcardProject is the visibility map key acting as the global default.
const WildcardProject = "*"

// VisibilityStore persists hidden-branch flags as one JSON object keyed
// by project name, each value an object of {branch: true}.
type VisibilityStore struct {
	doc *documentStore
}

// NewVisibilityStore creates a store backed by the given JSON file.
func NewVisibilityStore(path string) *VisibilityStore {
	return &VisibilityStore{doc: newDocumentStore(path)}
}

// IsHidden resolves the flag for (project, branch). A project-specific
// record always overrides the wildcard record for the same branch.
func (s *VisibilityStore) IsHidden(ctx context.Context, project, branch string) (bool, error) {
	var hidden bool
	err := s.doc.withLock(func() error {
		m := map[string]map[string]bool{}
		if err := s.doc.load(&m); err != nil {
			return err
		}
		if branches, ok := m[project]; ok {
			if v, ok := branches[branch]; ok {
				hidden = v
				return nil
			}
		}
		if branches, ok := m[WildcardProject]; ok {
			hidden = branches[branch]
		}
		return nil
	})
	return hidden, err
}

// Set records or clears the flag. Clearing deletes the record, and a
// project with no branches left is pruned from the document.
func (s *VisibilityStore) Set(ctx context.Context, project, branch string, hidden bool) error {
	return s.doc.withLock(func() error {
		m := map[string]map[string]bool{}
		if err := s.doc.load(&m); err != nil {
			return err
		}
		if hidden {
			if m[project] == nil {
				m[project] = map[string]bool{}
			}
			m[project][branch] = true
		} else {
			delete(m[project], branch)
			if len(m[project]) == 0 {
				delete(m, project)
			}
		}
		return s.doc.save(m)
	})
}

// All returns the full visibility map.
func (s *VisibilityStore) All(ctx context.Context) (map[string]map[string]bool, error) {
	m := map[string]map[string]bool{}
	err := s.doc.withLock(func() error {
		return s.doc.load(&m)
	})
	return m, err
}
