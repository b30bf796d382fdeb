package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arbor-sh/arbor/internal/domain"
	"github.com/arbor-sh/arbor/internal/logging"
)

// EventLog stores one JSON record per line in a single append-only file.
// Appends use O_APPEND single writes so concurrent writers stay safe
// without locking; ordering across processes is by timestamp at read time.
type EventLog struct {
	path string
}

// NewEventLog creates a journal backed by the given file.
func NewEventLog(path string) *EventLog {
	return &EventLog{path: path}
}

// Append writes one line to the journal.
func (l *EventLog) Append(ctx context.Context, event domain.Event) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create events directory: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ReadAll returns every parseable event in file order. Malformed lines
// are skipped, not fatal.
func (l *EventLog) ReadAll(ctx context.Context) ([]domain.Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []domain.Event
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(line, &e); err != nil || e.Type == "" {
			skipped++
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("failed to read event log: %w", err)
	}
	if skipped > 0 {
		logging.Logger.Warn("Skipped malformed event lines", "path", l.path, "count", skipped)
	}
	return events, nil
}

// Prune rewrites the journal keeping only events at or after cutoff.
// The new file is fully written and synced before it replaces the old
// one, so a crash mid-prune leaves either version intact.
func (l *EventLog) Prune(ctx context.Context, cutoff int64) (int, error) {
	events, err := l.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	if events == nil {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	w := bufio.NewWriter(tmp)
	kept := 0
	for _, e := range events {
		if e.Timestamp < cutoff {
			continue
		}
		line, err := json.Marshal(e)
		if err != nil {
			continue
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return 0, fmt.Errorf("failed to write pruned log: %w", err)
		}
		kept++
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to flush pruned log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync pruned log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close pruned log: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace event log: %w", err)
	}
	return len(events) - kept, nil
}
