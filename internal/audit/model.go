package audit

import "time"

// Actor identifies the staff member on whose behalf an action runs.
// A zero Actor means the action was triggered by the system.
type Actor struct {
	StaffID   string
	StaffName string
}

// IsZero reports whether no staff identity is attached.
func (a Actor) IsZero() bool {
	return a.StaffID == ""
}

// Entry is one immutable line of a job's audit trail.
type Entry struct {
	ID        string    `json:"id"`
	JobID     int64     `json:"jobId"`
	StaffID   *string   `json:"staffId,omitempty"`
	StaffName string    `json:"staffName,omitempty"`
	Action    string    `json:"action"`
	Content   string    `json:"content"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"createdAt"`
}
