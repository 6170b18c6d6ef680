package audit

import (
	"context"
	"sync"
)

// Buffer collects entries during a transaction and writes them to a target
// Appender only when Flush is called. Discarding the buffer drops them.
type Buffer struct {
	mu      sync.Mutex
	pending []Entry
}

// Append stages the entry and returns it with its ID and timestamp assigned.
func (b *Buffer) Append(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	entry, err := prepare(entry)
	if err != nil {
		return Entry{}, err
	}
	b.mu.Lock()
	b.pending = append(b.pending, entry)
	b.mu.Unlock()
	return entry, nil
}

// Pending returns the staged entries.
func (b *Buffer) Pending() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush writes staged entries to target in order and clears the buffer.
func (b *Buffer) Flush(ctx context.Context, target Appender) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, entry := range pending {
		if _, err := target.Append(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

var _ Appender = (*Buffer)(nil)
