package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"wasteops-backend/internal/shared/storage/object"
	"wasteops-backend/internal/shared/util"
)

// TextExtractor pulls plain text out of a rendered PDF.
type TextExtractor func(ctx context.Context, data []byte) (string, error)

// Service persists rendered documents and serves them back.
type Service struct {
	Store           object.ObjectStore
	Repo            Repo
	StorageProvider string
	Extract         TextExtractor
	Now             func() time.Time
}

// IssueRequest carries the rendered bytes for one document.
type IssueRequest struct {
	JobID   int64
	JobCode string
	Kind    Kind
	Data    []byte
	// ExternalID is printed on public documents, so callers reserve it with
	// NewExternalID before rendering. It is generated here when empty.
	ExternalID string
}

// Issued is the outcome of Issue. Undo reverts the blob write and must be
// called if the surrounding transaction does not commit.
type Issued struct {
	Document Document
	Replaced bool
	Undo     func(ctx context.Context) error
}

// NewExternalID returns a fresh public identifier.
func NewExternalID() string {
	return uuid.NewString()
}

// Issue writes req.Data to the blob store and records the metadata through
// repo, which is normally scoped to the caller's transaction. Mutable kinds
// replace the job's current document; immutable kinds always add a new one.
func (s *Service) Issue(ctx context.Context, repo Repo, req IssueRequest) (Issued, error) {
	if req.JobID <= 0 || strings.TrimSpace(req.JobCode) == "" || !req.Kind.Valid() {
		return Issued{}, fmt.Errorf("%w: job and kind are required", ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return Issued{}, fmt.Errorf("%w: empty document", ErrInvalidInput)
	}
	if repo == nil {
		repo = s.Repo
	}

	now := s.now()
	checksum := util.Checksum(req.Data)

	if req.Kind.Mutable() {
		return s.replace(ctx, repo, req, checksum, now)
	}
	return s.create(ctx, repo, req, checksum, now)
}

func (s *Service) replace(ctx context.Context, repo Repo, req IssueRequest, checksum string, now time.Time) (Issued, error) {
	current, err := repo.GetCurrent(ctx, req.JobID, req.Kind)
	existing := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Issued{}, fmt.Errorf("%w: load current %s: %v", ErrStorage, req.Kind, err)
	}

	path := StoragePath(req.JobCode, req.Kind, "")
	undo, err := s.snapshot(ctx, path)
	if err != nil {
		return Issued{}, err
	}
	if err := s.put(ctx, path, req.Data); err != nil {
		return Issued{}, err
	}

	doc := current
	if existing {
		doc.StoragePath = path
		doc.StoredFilename = FileName(req.JobCode, req.Kind)
		doc.SizeBytes = int64(len(req.Data))
		doc.Checksum = checksum
		doc.UpdatedAt = now
		err = repo.Update(ctx, doc)
	} else {
		doc = s.newDocument(req, path, FileName(req.JobCode, req.Kind), checksum, now)
		err = repo.Create(ctx, doc)
	}
	if err != nil {
		_ = undo(ctx)
		return Issued{}, fmt.Errorf("%w: record %s: %w", ErrStorage, req.Kind, err)
	}
	return Issued{Document: doc, Replaced: existing, Undo: undo}, nil
}

func (s *Service) create(ctx context.Context, repo Repo, req IssueRequest, checksum string, now time.Time) (Issued, error) {
	externalID := req.ExternalID
	if externalID == "" {
		externalID = NewExternalID()
	}
	path := StoragePath(req.JobCode, req.Kind, externalID)
	if err := s.put(ctx, path, req.Data); err != nil {
		return Issued{}, err
	}
	undo := func(ctx context.Context) error {
		return s.remove(ctx, path)
	}

	stored := path[strings.LastIndex(path, "/")+1:]
	doc := s.newDocument(req, path, stored, checksum, now)
	if req.Kind.Public() {
		doc.ExternalID = &externalID
	}
	if err := repo.Create(ctx, doc); err != nil {
		_ = undo(ctx)
		return Issued{}, fmt.Errorf("%w: record %s: %w", ErrStorage, req.Kind, err)
	}
	return Issued{Document: doc, Undo: undo}, nil
}

func (s *Service) newDocument(req IssueRequest, path, stored, checksum string, now time.Time) Document {
	return Document{
		ID:               uuid.NewString(),
		JobID:            req.JobID,
		Kind:             req.Kind,
		OriginalFilename: FileName(req.JobCode, req.Kind),
		StoredFilename:   stored,
		StoragePath:      path,
		StorageProvider:  s.provider(),
		MimeType:         mimePDF,
		SizeBytes:        int64(len(req.Data)),
		Checksum:         checksum,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// snapshot captures whatever currently sits at path so it can be restored.
func (s *Service) snapshot(ctx context.Context, path string) (func(context.Context) error, error) {
	previous, err := object.ReadAll(ctx, s.Store, path)
	switch {
	case err == nil:
		return func(ctx context.Context) error {
			return s.put(ctx, path, previous)
		}, nil
	case errors.Is(err, object.ErrNotFound):
		return func(ctx context.Context) error {
			return s.remove(ctx, path)
		}, nil
	default:
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, path, err)
	}
}

func (s *Service) put(ctx context.Context, path string, data []byte) error {
	if _, err := s.Store.Put(ctx, path, mimePDF, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, path, err)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, path string) error {
	if err := s.Store.Delete(ctx, path); err != nil && !errors.Is(err, object.ErrNotFound) {
		return fmt.Errorf("%w: delete %s: %v", ErrStorage, path, err)
	}
	return nil
}

// Current returns the job's current document of kind.
func (s *Service) Current(ctx context.Context, jobID int64, kind Kind) (Document, error) {
	if jobID <= 0 || !kind.Valid() {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetCurrent(ctx, jobID, kind)
}

// List returns all documents issued for a job.
func (s *Service) List(ctx context.Context, jobID int64) ([]Document, error) {
	if jobID <= 0 {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByJob(ctx, jobID)
}

// Public returns a document reachable by external id. Non-public kinds are
// reported as not found.
func (s *Service) Public(ctx context.Context, externalID string) (Document, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return Document{}, ErrNotFound
	}
	doc, err := s.Repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return Document{}, err
	}
	if !doc.Kind.Public() {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// Open streams a document's bytes.
func (s *Service) Open(ctx context.Context, doc Document) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, doc.StoragePath, err)
	}
	return rc, nil
}

// Verification reports whether a stored certificate is intact.
type Verification struct {
	Document        Document `json:"document"`
	Valid           bool     `json:"valid"`
	ChecksumMatches bool     `json:"checksumMatches"`
	ReferenceFound  bool     `json:"referenceFound"`
	JobCodeFound    bool     `json:"jobCodeFound"`
}

// Verify checks the stored bytes of a public document against the recorded
// checksum and confirms the printed reference and job code are present.
func (s *Service) Verify(ctx context.Context, externalID string) (Verification, error) {
	doc, err := s.Public(ctx, externalID)
	if err != nil {
		return Verification{}, err
	}
	data, err := object.ReadAll(ctx, s.Store, doc.StoragePath)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Verification{Document: doc}, nil
		}
		return Verification{}, fmt.Errorf("%w: read %s: %v", ErrStorage, doc.StoragePath, err)
	}

	v := Verification{
		Document:        doc,
		ChecksumMatches: util.Checksum(data) == doc.Checksum,
	}
	if s.Extract != nil {
		text, err := s.Extract(ctx, data)
		if err == nil {
			compact := strings.Join(strings.Fields(text), "")
			v.ReferenceFound = strings.Contains(compact, externalID)
			v.JobCodeFound = strings.Contains(compact, doc.JobCode())
		}
	} else {
		v.ReferenceFound = true
		v.JobCodeFound = true
	}
	v.Valid = v.ChecksumMatches && v.ReferenceFound && v.JobCodeFound
	return v, nil
}

func (s *Service) provider() string {
	if s.StorageProvider == "" {
		return "local"
	}
	return s.StorageProvider
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
