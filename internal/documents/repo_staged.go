package documents

import (
	"context"
	"errors"
)

// StagedRepo buffers writes over a base Repo until Flush. Reads see staged
// writes first, so a transition observes its own documents before commit.
type StagedRepo struct {
	Base    Repo
	created []Document
	updated []Document
}

// NewStagedRepo wraps base.
func NewStagedRepo(base Repo) *StagedRepo {
	return &StagedRepo{Base: base}
}

func (s *StagedRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.created = append(s.created, doc)
	return nil
}

func (s *StagedRepo) Update(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range s.created {
		if s.created[i].ID == doc.ID {
			s.created[i] = doc
			return nil
		}
	}
	for i := range s.updated {
		if s.updated[i].ID == doc.ID {
			s.updated[i] = doc
			return nil
		}
	}
	s.updated = append(s.updated, doc)
	return nil
}

func (s *StagedRepo) GetCurrent(ctx context.Context, jobID int64, kind Kind) (Document, error) {
	for i := len(s.created) - 1; i >= 0; i-- {
		if s.created[i].JobID == jobID && s.created[i].Kind == kind {
			return s.created[i], nil
		}
	}
	doc, err := s.Base.GetCurrent(ctx, jobID, kind)
	if err != nil {
		return Document{}, err
	}
	return s.overlay(doc), nil
}

func (s *StagedRepo) GetByExternalID(ctx context.Context, externalID string) (Document, error) {
	for _, doc := range s.created {
		if doc.ExternalID != nil && *doc.ExternalID == externalID {
			return doc, nil
		}
	}
	doc, err := s.Base.GetByExternalID(ctx, externalID)
	if err != nil {
		return Document{}, err
	}
	return s.overlay(doc), nil
}

func (s *StagedRepo) ListByJob(ctx context.Context, jobID int64) ([]Document, error) {
	docs, err := s.Base.ListByJob(ctx, jobID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	for i := range docs {
		docs[i] = s.overlay(docs[i])
	}
	for _, doc := range s.created {
		if doc.JobID == jobID {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Pending reports how many writes are buffered.
func (s *StagedRepo) Pending() int {
	return len(s.created) + len(s.updated)
}

// Flush applies buffered writes to target in order and clears the buffer.
func (s *StagedRepo) Flush(ctx context.Context, target Repo) error {
	for _, doc := range s.updated {
		if err := target.Update(ctx, doc); err != nil {
			return err
		}
	}
	for _, doc := range s.created {
		if err := target.Create(ctx, doc); err != nil {
			return err
		}
	}
	s.created = nil
	s.updated = nil
	return nil
}

func (s *StagedRepo) overlay(doc Document) Document {
	for _, u := range s.updated {
		if u.ID == doc.ID {
			return u
		}
	}
	return doc
}
