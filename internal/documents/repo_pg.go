package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"wasteops-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. DB may be a transaction.
type PGRepo struct {
	DB db.DBTX
}

const selectColumns = `id, job_id, kind, original_filename, stored_filename, storage_path, storage_provider, mime_type, size_bytes, checksum, external_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    job_id,
    kind,
    mutable,
    original_filename,
    stored_filename,
    storage_path,
    storage_provider,
    mime_type,
    size_bytes,
    checksum,
    external_id,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	storageProvider := doc.StorageProvider
	if storageProvider == "" {
		storageProvider = "local"
	}
	var externalID sql.NullString
	if doc.ExternalID != nil {
		externalID = sql.NullString{String: *doc.ExternalID, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.JobID,
		doc.Kind.String(),
		doc.Kind.Mutable(),
		doc.OriginalFilename,
		doc.StoredFilename,
		doc.StoragePath,
		storageProvider,
		doc.MimeType,
		doc.SizeBytes,
		doc.Checksum,
		externalID,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s for job %d", ErrDuplicate, doc.Kind, doc.JobID)
	}
	return err
}

// Update rewrites the content metadata of an existing document in place.
func (r *PGRepo) Update(ctx context.Context, doc Document) error {
	const query = `
UPDATE documents
SET stored_filename = $2, storage_path = $3, size_bytes = $4, checksum = $5, updated_at = $6
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, doc.ID, doc.StoredFilename, doc.StoragePath, doc.SizeBytes, doc.Checksum, doc.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCurrent returns the newest document of kind for a job. Rows sharing a
// timestamp fall back to insert order.
func (r *PGRepo) GetCurrent(ctx context.Context, jobID int64, kind Kind) (Document, error) {
	query := `
SELECT ` + selectColumns + `
FROM documents
WHERE job_id = $1 AND kind = $2
ORDER BY created_at DESC, seq DESC
LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, jobID, kind.String()))
}

// GetByExternalID looks a document up by its public identifier.
func (r *PGRepo) GetByExternalID(ctx context.Context, externalID string) (Document, error) {
	query := `
SELECT ` + selectColumns + `
FROM documents
WHERE external_id = $1
LIMIT 1`
	return scanDocument(r.DB.QueryRowContext(ctx, query, externalID))
}

// ListByJob lists a job's documents oldest first.
func (r *PGRepo) ListByJob(ctx context.Context, jobID int64) ([]Document, error) {
	query := `
SELECT ` + selectColumns + `
FROM documents
WHERE job_id = $1
ORDER BY created_at ASC, seq ASC`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc        Document
		kind       string
		externalID sql.NullString
	)
	err := row.Scan(
		&doc.ID,
		&doc.JobID,
		&kind,
		&doc.OriginalFilename,
		&doc.StoredFilename,
		&doc.StoragePath,
		&doc.StorageProvider,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.Checksum,
		&externalID,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	parsed, err := ParseKind(kind)
	if err != nil {
		return Document{}, err
	}
	doc.Kind = parsed
	if externalID.Valid {
		id := externalID.String
		doc.ExternalID = &id
	}
	return doc, nil
}
