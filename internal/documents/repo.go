package documents

import "context"

// Repo defines persistence operations for document metadata.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	Update(ctx context.Context, doc Document) error
	// GetCurrent returns the newest document of kind for a job.
	GetCurrent(ctx context.Context, jobID int64, kind Kind) (Document, error)
	GetByExternalID(ctx context.Context, externalID string) (Document, error)
	ListByJob(ctx context.Context, jobID int64) ([]Document, error)
}
