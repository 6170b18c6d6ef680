package audit

import "errors"

var (
	// ErrInvalidEntry indicates an entry missing its job or content.
	ErrInvalidEntry = errors.New("invalid audit entry")
)
