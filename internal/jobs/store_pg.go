package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/shared/storage/db"
)

// PGStore implements Store using Postgres row locks.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed job store.
func NewPGStore(conn *sql.DB) *PGStore {
	return &PGStore{DB: conn}
}

const jobColumns = `id, code, status, version, client_ref, client_name, address_line1, address_line2, city, postcode,
    suggested_date, requested_date, collection_date, quote_amount, quote_notes,
    customer_signature, customer_name, driver_signature, driver_name, staff_signature, staff_name,
    items_confirmed, created_at, updated_at, collected_at, completed_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts the job, its items and the creation audit entry in one transaction.
func (s *PGStore) Create(ctx context.Context, job Job, entry audit.Entry) (created Job, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, storageErr("begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := job.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err = tx.QueryRowContext(ctx, `
INSERT INTO jobs (status, version, client_ref, client_name, address_line1, address_line2, city, postcode, created_at, updated_at)
VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $8)
RETURNING id`,
		job.Status.String(), job.ClientRef, job.ClientName, job.AddressLine1, job.AddressLine2, job.City, job.Postcode, now,
	).Scan(&job.ID); err != nil {
		return Job{}, storageErr("insert job", err)
	}
	job.Code = JobCode(job.ID)
	job.Version = 1
	job.CreatedAt, job.UpdatedAt = now, now
	if _, err = tx.ExecContext(ctx, `UPDATE jobs SET code = $2 WHERE id = $1`, job.ID, job.Code); err != nil {
		return Job{}, storageErr("assign code", err)
	}

	for i := range job.Items {
		it := &job.Items[i]
		it.JobID = job.ID
		if err = tx.QueryRowContext(ctx, `
INSERT INTO job_items (job_id, category, subcategory, quantity, description, hazardous, data_bearing)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
			job.ID, it.Category, it.Subcategory, it.Quantity, it.Description, it.Hazardous, it.DataBearing,
		).Scan(&it.ID); err != nil {
			return Job{}, storageErr("insert item", err)
		}
	}

	entry.JobID = job.ID
	if _, err = (&audit.PGLog{DB: tx}).Append(ctx, entry); err != nil {
		return Job{}, storageErr("insert audit", err)
	}
	if err = tx.Commit(); err != nil {
		return Job{}, storageErr("commit", err)
	}
	return job, nil
}

// Get loads a job and its items without locking.
func (s *PGStore) Get(ctx context.Context, id int64) (Job, error) {
	job, err := scanJob(s.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return Job{}, err
	}
	job.Items, err = loadItems(ctx, s.DB, id)
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// Begin opens a transaction and takes the row lock with NOWAIT so a second
// transition on the same job fails fast with ErrConflict.
func (s *PGStore) Begin(ctx context.Context, id int64) (Tx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	job, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE NOWAIT`, id))
	if err != nil {
		_ = tx.Rollback()
		if db.IsLockNotAvailable(err) {
			return nil, &TransitionError{Kind: ErrConflict, Detail: "job is being updated"}
		}
		return nil, err
	}
	job.Items, err = loadItems(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &pgTx{tx: tx, job: job}, nil
}

type pgTx struct {
	tx  *sql.Tx
	job Job
}

func (t *pgTx) Job() Job { return t.job.clone() }

func (t *pgTx) Save(ctx context.Context, job Job) error {
	res, err := t.tx.ExecContext(ctx, `
UPDATE jobs SET
    status = $3,
    suggested_date = $4,
    requested_date = $5,
    collection_date = $6,
    quote_amount = $7,
    quote_notes = $8,
    customer_signature = $9,
    customer_name = $10,
    driver_signature = $11,
    driver_name = $12,
    staff_signature = $13,
    staff_name = $14,
    items_confirmed = $15,
    collected_at = $16,
    completed_at = $17,
    cancelled_at = $18,
    updated_at = $19,
    version = version + 1
WHERE id = $1 AND version = $2`,
		job.ID, job.Version, job.Status.String(),
		nullTime(job.SuggestedDate), nullTime(job.RequestedDate), nullTime(job.CollectionDate),
		nullString(job.QuoteAmount), job.QuoteNotes,
		nullBytes(job.CustomerSignature), job.CustomerName,
		nullBytes(job.DriverSignature), job.DriverName,
		nullBytes(job.StaffSignature), job.StaffName,
		job.ItemsConfirmed,
		nullTime(job.CollectedAt), nullTime(job.CompletedAt), nullTime(job.CancelledAt),
		job.UpdatedAt,
	)
	if err != nil {
		if db.IsLockNotAvailable(err) {
			return &TransitionError{Kind: ErrConflict, Detail: "job is being updated"}
		}
		return storageErr("update job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update job", err)
	}
	if n == 0 {
		return &TransitionError{Kind: ErrConflict, Detail: "job version changed"}
	}
	return nil
}

func (t *pgTx) Audit() audit.Appender { return &audit.PGLog{DB: t.tx} }

func (t *pgTx) Documents() documents.Repo { return &documents.PGRepo{DB: t.tx} }

func (t *pgTx) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		_ = t.tx.Rollback()
		return err
	}
	if err := t.tx.Commit(); err != nil {
		if db.IsLockNotAvailable(err) {
			return &TransitionError{Kind: ErrConflict, Detail: "serialization failure"}
		}
		return storageErr("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func loadItems(ctx context.Context, q db.DBTX, jobID int64) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, job_id, category, subcategory, quantity, description, hazardous, data_bearing
FROM job_items
WHERE job_id = $1
ORDER BY id ASC`, jobID)
	if err != nil {
		return nil, storageErr("load items", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.JobID, &it.Category, &it.Subcategory, &it.Quantity, &it.Description, &it.Hazardous, &it.DataBearing); err != nil {
			return nil, storageErr("scan item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load items", err)
	}
	return items, nil
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job                                   Job
		code, status, quoteAmount             sql.NullString
		suggested, requested, collection      sql.NullTime
		collectedAt, completedAt, cancelledAt sql.NullTime
		customerSig, driverSig, staffSig      []byte
	)
	err := row.Scan(
		&job.ID, &code, &status, &job.Version, &job.ClientRef, &job.ClientName,
		&job.AddressLine1, &job.AddressLine2, &job.City, &job.Postcode,
		&suggested, &requested, &collection, &quoteAmount, &job.QuoteNotes,
		&customerSig, &job.CustomerName, &driverSig, &job.DriverName, &staffSig, &job.StaffName,
		&job.ItemsConfirmed, &job.CreatedAt, &job.UpdatedAt, &collectedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, storageErr("scan job", err)
	}
	parsed, err := ParseStatus(status.String)
	if err != nil {
		return Job{}, storageErr("scan job", err)
	}
	job.Status = parsed
	job.Code = code.String
	if job.Code == "" {
		job.Code = JobCode(job.ID)
	}
	if quoteAmount.Valid {
		amount := quoteAmount.String
		job.QuoteAmount = &amount
	}
	job.SuggestedDate = timePtr(suggested)
	job.RequestedDate = timePtr(requested)
	job.CollectionDate = timePtr(collection)
	job.CollectedAt = timePtr(collectedAt)
	job.CompletedAt = timePtr(completedAt)
	job.CancelledAt = timePtr(cancelledAt)
	job.CustomerSignature = customerSig
	job.DriverSignature = driverSig
	job.StaffSignature = staffSig
	return job, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
