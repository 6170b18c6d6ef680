package jobs

import (
	"context"
	"strconv"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/documents"
)

// Store persists jobs. All writes to an existing job go through a Tx that
// holds the job's exclusive lock until Commit or Rollback.
type Store interface {
	// Create inserts job with its items and the creation audit entry in one
	// unit, assigning ID and Code. entry.JobID is filled in by the store.
	Create(ctx context.Context, job Job, entry audit.Entry) (Job, error)
	Get(ctx context.Context, id int64) (Job, error)
	// Begin locks the job. A job already locked by another transition
	// fails with ErrConflict rather than waiting.
	Begin(ctx context.Context, id int64) (Tx, error)
}

// Tx is a locked unit of work on one job.
type Tx interface {
	// Job returns the job as read under the lock.
	Job() Job
	// Save writes job. The write fails with ErrConflict if the stored
	// version moved since the lock was taken.
	Save(ctx context.Context, job Job) error
	Audit() audit.Appender
	Documents() documents.Repo
	Commit(ctx context.Context) error
	// Rollback discards the unit. It is a no-op after Commit.
	Rollback() error
}

// JobCode formats the public job number for id.
func JobCode(id int64) string {
	return "J-" + strconv.FormatInt(id, 10)
}
