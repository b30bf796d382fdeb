package services

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/arbor-sh/arbor/internal/domain"
)

// fakeAllocationStore is an in-memory AllocationRepository. Update works
// on a copy and commits only when fn returns nil, matching the real
// store's all-or-nothing behavior.
type fakeAllocationStore struct {
	mu      sync.Mutex
	records map[string]domain.PortMap
}

func newFakeAllocationStore() *fakeAllocationStore {
	return &fakeAllocationStore{records: make(map[string]domain.PortMap)}
}

func (s *fakeAllocationStore) Get(ctx context.Context, key string) (domain.PortMap, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *fakeAllocationStore) Put(ctx context.Context, key string, ports domain.PortMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = ports
	return nil
}

func (s *fakeAllocationStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}

func (s *fakeAllocationStore) All(ctx context.Context) (map[string]domain.PortMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.PortMap, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out, nil
}

func (s *fakeAllocationStore) Update(ctx context.Context, fn func(records map[string]domain.PortMap) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := make(map[string]domain.PortMap, len(s.records))
	for k, v := range s.records {
		work[k] = v
	}
	if err := fn(work); err != nil {
		return err
	}
	s.records = work
	return nil
}

// fakeProber marks specific ports as bound.
type fakeProber struct {
	busy map[int]bool
}

func (p *fakeProber) IsFree(ctx context.Context, port int) bool {
	return !p.busy[port]
}

// fakeInspector maps ports to process names.
type fakeInspector struct {
	procs map[int]string
}

func (i *fakeInspector) ProcessOnPort(ctx context.Context, port int) (string, bool) {
	name, ok := i.procs[port]
	return name, ok
}

func (i *fakeInspector) Clear() {}

// fakeGit records calls and returns canned data. addFunc, when set, runs
// on Add so tests can materialize the worktree directory.
type fakeGit struct {
	worktrees    []domain.Worktree
	listErr      error
	addErr       error
	addFunc      func(path, branch string) error
	removeErr    error
	adminDirs    []string
	adminErr     error
	backPointers map[string]string
	relinkErr    error
	lastCommit   string

	added    []string
	removed  []string
	relinked []string
}

func (g *fakeGit) List(ctx context.Context, bareRepo string) ([]domain.Worktree, error) {
	return g.worktrees, g.listErr
}

func (g *fakeGit) Add(ctx context.Context, bareRepo, path, branch string) error {
	if g.addErr != nil {
		return g.addErr
	}
	g.added = append(g.added, path)
	if g.addFunc != nil {
		return g.addFunc(path, branch)
	}
	return nil
}

func (g *fakeGit) Remove(ctx context.Context, bareRepo, path string) error {
	if g.removeErr != nil {
		return g.removeErr
	}
	g.removed = append(g.removed, path)
	return nil
}

func (g *fakeGit) AdminDirs(ctx context.Context, bareRepo string) ([]string, error) {
	return g.adminDirs, g.adminErr
}

func (g *fakeGit) BackPointer(ctx context.Context, bareRepo, adminDir string) (string, error) {
	target, ok := g.backPointers[adminDir]
	if !ok {
		return "", fmt.Errorf("no gitdir file for %s", adminDir)
	}
	return target, nil
}

func (g *fakeGit) Relink(ctx context.Context, bareRepo, adminDir, path string) error {
	if g.relinkErr != nil {
		return g.relinkErr
	}
	g.relinked = append(g.relinked, adminDir)
	return nil
}

func (g *fakeGit) LastCommit(ctx context.Context, bareRepo, branch string) string {
	return g.lastCommit
}

// fakeJournal is an in-memory EventJournal with injectable failures.
type fakeJournal struct {
	mu        sync.Mutex
	events    []domain.Event
	appendErr error
	readErr   error
}

func (j *fakeJournal) Append(ctx context.Context, event domain.Event) error {
	if j.appendErr != nil {
		return j.appendErr
	}
	j.mu.Lock()
	j.events = append(j.events, event)
	j.mu.Unlock()
	return nil
}

func (j *fakeJournal) ReadAll(ctx context.Context) ([]domain.Event, error) {
	if j.readErr != nil {
		return nil, j.readErr
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.Event, len(j.events))
	copy(out, j.events)
	return out, nil
}

func (j *fakeJournal) Prune(ctx context.Context, cutoff int64) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var kept []domain.Event
	for _, e := range j.events {
		if e.Timestamp >= cutoff {
			kept = append(kept, e)
		}
	}
	removed := len(j.events) - len(kept)
	j.events = kept
	return removed, nil
}

// fakeAppender captures appended events for assertion.
type fakeAppender struct {
	events []domain.Event
}

func (a *fakeAppender) Append(ctx context.Context, event domain.Event) {
	a.events = append(a.events, event)
}

func (a *fakeAppender) types() []domain.EventType {
	out := make([]domain.EventType, len(a.events))
	for i, e := range a.events {
		out[i] = e.Type
	}
	return out
}

// fakeVisibilityStore counts reads so cache behavior is observable.
type fakeVisibilityStore struct {
	data     map[string]map[string]bool
	allCalls int
}

func newFakeVisibilityStore() *fakeVisibilityStore {
	return &fakeVisibilityStore{data: make(map[string]map[string]bool)}
}

func (s *fakeVisibilityStore) IsHidden(ctx context.Context, project, branch string) (bool, error) {
	if branches, ok := s.data[project]; ok {
		if v, ok := branches[branch]; ok {
			return v, nil
		}
	}
	if branches, ok := s.data["*"]; ok {
		return branches[branch], nil
	}
	return false, nil
}

func (s *fakeVisibilityStore) Set(ctx context.Context, project, branch string, hidden bool) error {
	if !hidden {
		if branches, ok := s.data[project]; ok {
			delete(branches, branch)
			if len(branches) == 0 {
				delete(s.data, project)
			}
		}
		return nil
	}
	if s.data[project] == nil {
		s.data[project] = make(map[string]bool)
	}
	s.data[project][branch] = true
	return nil
}

func (s *fakeVisibilityStore) All(ctx context.Context) (map[string]map[string]bool, error) {
	s.allCalls++
	out := make(map[string]map[string]bool, len(s.data))
	for p, branches := range s.data {
		inner := make(map[string]bool, len(branches))
		for b, v := range branches {
			inner[b] = v
		}
		out[p] = inner
	}
	return out, nil
}

// writeTestWorktree creates a plausible worktree directory with a .git
// pointer file and one source file.
func writeTestWorktree(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path+"/.git", []byte("gitdir: /repos/api.git/worktrees/feature\n"), 0644); err != nil {
		return err
	}
	return os.WriteFile(path+"/notes.md", []byte("# notes\n"), 0644)
}
