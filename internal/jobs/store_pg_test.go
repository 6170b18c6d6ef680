package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"wasteops-backend/internal/audit"
)

var jobCols = []string{
	"id", "code", "status", "version", "client_ref", "client_name", "address_line1", "address_line2", "city", "postcode",
	"suggested_date", "requested_date", "collection_date", "quote_amount", "quote_notes",
	"customer_signature", "customer_name", "driver_signature", "driver_name", "staff_signature", "staff_name",
	"items_confirmed", "created_at", "updated_at", "collected_at", "completed_at", "cancelled_at",
}

var itemCols = []string{"id", "job_id", "category", "subcategory", "quantity", "description", "hazardous", "data_bearing"}

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPGStore(conn), mock
}

func scheduledRow(now time.Time) *sqlmock.Rows {
	collection := now.Add(48 * time.Hour)
	return sqlmock.NewRows(jobCols).AddRow(
		int64(100), "J-100", "scheduled", int64(4), "ACME-1", "Acme Ltd", "1 High St", "", "Leeds", "LS1 1AA",
		nil, nil, collection, "250.00", "",
		nil, "", nil, "", nil, "",
		false, now, now, nil, nil, nil,
	)
}

func TestPGStoreCreate(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	staff := "staff-1"

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs("quote_requested", "ACME-1", "Acme Ltd", "1 High St", "", "Leeds", "LS1 1AA", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
	mock.ExpectExec("UPDATE jobs SET code").
		WithArgs(int64(100), "J-100").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO job_items").
		WithArgs(int64(100), "laptops", "", 3, "", false, true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO audit_entries").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	job := Job{
		Status:       StatusQuoteRequested,
		ClientRef:    "ACME-1",
		ClientName:   "Acme Ltd",
		AddressLine1: "1 High St",
		City:         "Leeds",
		Postcode:     "LS1 1AA",
		CreatedAt:    now,
		Items:        []Item{{Category: "laptops", Quantity: 3, DataBearing: true}},
	}
	created, err := store.Create(context.Background(), job, audit.Entry{
		StaffID:   &staff,
		StaffName: "Sam",
		Action:    "job.created",
		Content:   "Quote requested",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != 100 || created.Code != "J-100" || created.Version != 1 {
		t.Fatalf("unexpected job identity: %+v", created)
	}
	if created.Items[0].ID != 7 || created.Items[0].JobID != 100 {
		t.Fatalf("item not linked: %+v", created.Items[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreCreateRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO jobs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec("UPDATE jobs SET code").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO job_items").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), Job{
		Status: StatusQuoteRequested,
		Items:  []Item{{Category: "monitors", Quantity: 1}},
	}, audit.Entry{Action: "job.created", Content: "Quote requested"})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreGet(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM jobs WHERE id = \$1`).
		WithArgs(int64(100)).
		WillReturnRows(scheduledRow(now))
	mock.ExpectQuery("FROM job_items").
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(1), int64(100), "laptops", "", 3, "", false, true).
			AddRow(int64(2), int64(100), "batteries", "lithium", 10, "", true, false))

	job, err := store.Get(context.Background(), 100)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusScheduled || job.Version != 4 {
		t.Fatalf("unexpected status/version: %v/%d", job.Status, job.Version)
	}
	if job.QuoteAmount == nil || *job.QuoteAmount != "250.00" {
		t.Fatalf("quote amount not scanned: %v", job.QuoteAmount)
	}
	if job.CollectionDate == nil || job.SuggestedDate != nil {
		t.Fatalf("nullable dates not scanned: %+v", job)
	}
	if len(job.Items) != 2 || !job.Items[1].Hazardous {
		t.Fatalf("items not loaded: %+v", job.Items)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreGetMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM jobs WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(jobCols))

	if _, err := store.Get(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreBeginLockBusy(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE NOWAIT").
		WithArgs(int64(100)).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "could not obtain lock on row"})
	mock.ExpectRollback()

	_, err := store.Begin(context.Background(), 100)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreBeginAndSave(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE NOWAIT").
		WillReturnRows(scheduledRow(now))
	mock.ExpectQuery("FROM job_items").
		WillReturnRows(sqlmock.NewRows(itemCols))
	mock.ExpectExec("UPDATE jobs SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := store.Begin(context.Background(), 100)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	job := tx.Job()
	job.Status = StatusPostponed
	job.UpdatedAt = now.Add(time.Hour)
	if err := tx.Save(context.Background(), job); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreSaveStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE NOWAIT").
		WillReturnRows(scheduledRow(now))
	mock.ExpectQuery("FROM job_items").
		WillReturnRows(sqlmock.NewRows(itemCols))
	mock.ExpectExec("UPDATE jobs SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := store.Begin(context.Background(), 100)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err = tx.Save(context.Background(), tx.Job())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
