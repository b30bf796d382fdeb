package storage

import (
	"context"

	"github.com/arbor-sh/arbor/internal/domain"
)

// AllocationStore persists the port map as a single JSON object keyed by
// "<project>/<branch>", each value an object of {service: port}.
type AllocationStore struct {
	doc *documentStore
}

// NewAllocationStore creates a store backed by the given JSON file.
func NewAllocationStore(path string) *AllocationStore {
	return &AllocationStore{doc: newDocumentStore(path)}
}

// Get returns the record for key, and whether it exists.
func (s *AllocationStore) Get(ctx context.Context, key string) (domain.PortMap, bool, error) {
	var ports domain.PortMap
	var found bool
	err := s.doc.withLock(func() error {
		records := map[string]domain.PortMap{}
		if err := s.doc.load(&records); err != nil {
			return err
		}
		ports, found = records[key]
		return nil
	})
	return ports, found, err
}

// Put replaces the record for key wholesale.
func (s *AllocationStore) Put(ctx context.Context, key string, ports domain.PortMap) error {
	return s.Update(ctx, func(records map[string]domain.PortMap) error {
		records[key] = ports
		return nil
	})
}

// Delete removes the record if present and reports whether it existed.
func (s *AllocationStore) Delete(ctx context.Context, key string) (bool, error) {
	var existed bool
	err := s.doc.withLock(func() error {
		records := map[string]domain.PortMap{}
		if err := s.doc.load(&records); err != nil {
			return err
		}
		if _, existed = records[key]; !existed {
			return nil
		}
		delete(records, key)
		return s.doc.save(records)
	})
	return existed, err
}

// All returns every stored record.
func (s *AllocationStore) All(ctx context.Context) (map[string]domain.PortMap, error) {
	records := map[string]domain.PortMap{}
	err := s.doc.withLock(func() error {
		return s.doc.load(&records)
	})
	return records, err
}

// Update runs fn over the record set under the store lock and persists
// the result if fn returns nil.
func (s *AllocationStore) Update(ctx context.Context, fn func(records map[string]domain.PortMap) error) error {
	return s.doc.withLock(func() error {
		records := map[string]domain.PortMap{}
		if err := s.doc.load(&records); err != nil {
			return err
		}
		if err := fn(records); err != nil {
			return err
		}
		return s.doc.save(records)
	})
}
