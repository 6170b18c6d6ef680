// Package guard keeps job-scoped requests on the section that matches the
// job's current phase.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wasteops-backend/internal/jobs"
)

// Lookup resolves a job by id.
type Lookup interface {
	Get(ctx context.Context, id int64) (jobs.Job, error)
}

// Decision is the outcome of a guard check. RedirectTo is empty when the
// request may proceed.
type Decision struct {
	Phase      jobs.Phase
	RedirectTo string
}

// Proceed reports whether the request may reach its handler.
func (d Decision) Proceed() bool {
	return d.RedirectTo == ""
}

// PhaseForStatus maps a status to the section it belongs to.
func PhaseForStatus(s jobs.Status) jobs.Phase {
	return s.Phase()
}

// PhaseForPath finds the section named by path. The second result is false
// when the path names none.
func PhaseForPath(path string) (jobs.Phase, bool) {
	for _, p := range jobs.Phases() {
		if strings.Contains(path, "/"+p.Segment()) {
			return p, true
		}
	}
	return 0, false
}

// CanonicalPath is the section URL of a job within phase.
func CanonicalPath(jobID int64, phase jobs.Phase) string {
	return fmt.Sprintf("/api/v1/jobs/%d/%s", jobID, phase.Segment())
}

// Check compares the job's phase with the phase implied by path. A missing
// job yields jobs.ErrNotFound before any phase comparison.
func Check(ctx context.Context, lookup Lookup, jobID int64, path string) (Decision, error) {
	if jobID <= 0 {
		return Decision{}, jobs.ErrNotFound
	}
	job, err := lookup.Get(ctx, jobID)
	if err != nil {
		return Decision{}, err
	}
	current := PhaseForStatus(job.Status)
	requested, ok := PhaseForPath(path)
	if !ok || requested == current {
		return Decision{Phase: current}, nil
	}
	return Decision{Phase: current, RedirectTo: CanonicalPath(jobID, current)}, nil
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, jobs.ErrNotFound)
}
