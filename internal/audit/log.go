package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Appender writes audit entries. Implementations never update or delete.
type Appender interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
}

// Reader lists a job's audit trail in creation order.
type Reader interface {
	ListByJob(ctx context.Context, jobID int64) ([]Entry, error)
}

// Log is a full audit log backend.
type Log interface {
	Appender
	Reader
}

// NewEntry builds an entry attributed to actor. System entries keep the actor
// when one is present so the trail shows who triggered the templated message.
func NewEntry(jobID int64, actor Actor, action, content string, system bool) Entry {
	entry := Entry{
		JobID:     jobID,
		Action:    action,
		Content:   content,
		System:    system,
		StaffName: actor.StaffName,
	}
	if !actor.IsZero() {
		id := actor.StaffID
		entry.StaffID = &id
	}
	return entry
}

func prepare(entry Entry) (Entry, error) {
	if entry.JobID <= 0 || entry.Content == "" || entry.Action == "" {
		return Entry{}, ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.StaffID == nil && !entry.System {
		// No staff identity: recorded as a system entry.
		entry.System = true
	}
	return entry, nil
}
