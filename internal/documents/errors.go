package documents

import "errors"

var (
	// ErrNotFound indicates no document matched.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates validation or bad input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage indicates the blob store or metadata write failed.
	ErrStorage = errors.New("storage error")

	// ErrDuplicate indicates a second current row for a mutable kind, or a
	// reused external id.
	ErrDuplicate = errors.New("duplicate document")
)
