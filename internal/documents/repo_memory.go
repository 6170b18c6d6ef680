package documents

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[int64][]Document // jobID -> documents in issue order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[int64][]Document),
	}
}

// Create appends a document to the job's list.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.JobID] = append(r.data[doc.JobID], doc)
	return nil
}

// Update overwrites the stored document with the same ID.
func (r *MemoryRepo) Update(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	docs := r.data[doc.JobID]
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			return nil
		}
	}
	return ErrNotFound
}

// GetCurrent returns the most recently issued document of kind for a job.
func (r *MemoryRepo) GetCurrent(ctx context.Context, jobID int64, kind Kind) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := r.data[jobID]
	for i := len(docs) - 1; i >= 0; i-- {
		if docs[i].Kind == kind {
			return docs[i], nil
		}
	}
	return Document{}, ErrNotFound
}

// GetByExternalID finds a document by its public identifier.
func (r *MemoryRepo) GetByExternalID(ctx context.Context, externalID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, docs := range r.data {
		for _, doc := range docs {
			if doc.ExternalID != nil && *doc.ExternalID == externalID {
				return doc, nil
			}
		}
	}
	return Document{}, ErrNotFound
}

// ListByJob returns a job's documents, oldest first.
func (r *MemoryRepo) ListByJob(ctx context.Context, jobID int64) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	docs := make([]Document, len(r.data[jobID]))
	copy(docs, r.data[jobID])
	r.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}
