package audit

import (
	"context"
	"sync"
)

// MemoryLog is an in-memory Log. Entries are kept per job in append order.
type MemoryLog struct {
	mu    sync.RWMutex
	byJob map[int64][]Entry
}

// NewMemoryLog constructs a MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{byJob: make(map[int64][]Entry)}
}

// Append stores a new entry.
func (l *MemoryLog) Append(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	entry, err := prepare(entry)
	if err != nil {
		return Entry{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byJob[entry.JobID] = append(l.byJob[entry.JobID], entry)
	return entry, nil
}

// ListByJob returns a copy of the job's entries, oldest first.
func (l *MemoryLog) ListByJob(ctx context.Context, jobID int64) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := l.byJob[jobID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

var _ Log = (*MemoryLog)(nil)
