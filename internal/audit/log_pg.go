package audit

import (
	"context"
	"database/sql"

	"wasteops-backend/internal/shared/storage/db"
)

// PGLog implements Log using Postgres. DB may be a *sql.Tx so entries commit
// together with the job change that produced them.
type PGLog struct {
	DB db.DBTX
}

// Append inserts one entry. The table rejects UPDATE and DELETE.
func (l *PGLog) Append(ctx context.Context, entry Entry) (Entry, error) {
	entry, err := prepare(entry)
	if err != nil {
		return Entry{}, err
	}
	const query = `
INSERT INTO audit_entries (id, job_id, staff_id, staff_name, action, content, is_system, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var staffID sql.NullString
	if entry.StaffID != nil {
		staffID = sql.NullString{String: *entry.StaffID, Valid: true}
	}
	if _, err := l.DB.ExecContext(ctx, query,
		entry.ID,
		entry.JobID,
		staffID,
		entry.StaffName,
		entry.Action,
		entry.Content,
		entry.System,
		entry.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ListByJob returns the job's entries ordered by creation time.
func (l *PGLog) ListByJob(ctx context.Context, jobID int64) ([]Entry, error) {
	const query = `
SELECT id, job_id, staff_id, staff_name, action, content, is_system, created_at
FROM audit_entries
WHERE job_id = $1
ORDER BY created_at ASC, seq ASC`

	rows, err := l.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var entry Entry
		var staffID sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.JobID,
			&staffID,
			&entry.StaffName,
			&entry.Action,
			&entry.Content,
			&entry.System,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if staffID.Valid {
			id := staffID.String
			entry.StaffID = &id
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

var _ Log = (*PGLog)(nil)
