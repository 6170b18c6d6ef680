package jobs

import "fmt"

// Status is the lifecycle state of a job.
type Status uint8

const (
	StatusQuoteRequested Status = iota + 1
	StatusQuoteProvided
	StatusQuoteRejected
	StatusNeedsScheduling
	StatusRequestPending
	StatusScheduled
	StatusPostponed
	StatusCollected
	StatusReceivedAtFacility
	StatusProcessing
	StatusCompleted
	StatusCancelled
)

// Phase groups statuses that share a UI section.
type Phase uint8

const (
	PhaseQuoting Phase = iota + 1
	PhaseCollection
	PhaseProcessing
	PhaseCompleted
)

var statusNames = map[Status]string{
	StatusQuoteRequested:     "quote_requested",
	StatusQuoteProvided:      "quote_provided",
	StatusQuoteRejected:      "quote_rejected",
	StatusNeedsScheduling:    "needs_scheduling",
	StatusRequestPending:     "request_pending",
	StatusScheduled:          "scheduled",
	StatusPostponed:          "postponed",
	StatusCollected:          "collected",
	StatusReceivedAtFacility: "received_at_facility",
	StatusProcessing:         "processing",
	StatusCompleted:          "completed",
	StatusCancelled:          "cancelled",
}

var statusLabels = map[Status]string{
	StatusQuoteRequested:     "Quote Requested",
	StatusQuoteProvided:      "Quote Provided",
	StatusQuoteRejected:      "Quote Rejected",
	StatusNeedsScheduling:    "Needs Scheduling",
	StatusRequestPending:     "Request Pending",
	StatusScheduled:          "Scheduled",
	StatusPostponed:          "Postponed",
	StatusCollected:          "Collected",
	StatusReceivedAtFacility: "Received at Facility",
	StatusProcessing:         "Processing",
	StatusCompleted:          "Completed",
	StatusCancelled:          "Cancelled",
}

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, 0, len(statusNames))
	for s := StatusQuoteRequested; s <= StatusCancelled; s++ {
		out = append(out, s)
	}
	return out
}

// ParseStatus maps a stored name such as "scheduled" to its Status.
func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Valid reports whether s is a declared status.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// String returns the snake_case name used in storage and JSON.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	return statusLabels[s]
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Phase returns the section a status belongs to. Cancelled jobs are shown
// with completed ones.
func (s Status) Phase() Phase {
	switch s {
	case StatusQuoteRequested, StatusQuoteProvided, StatusQuoteRejected:
		return PhaseQuoting
	case StatusNeedsScheduling, StatusRequestPending, StatusScheduled, StatusPostponed, StatusCollected:
		return PhaseCollection
	case StatusReceivedAtFacility, StatusProcessing:
		return PhaseProcessing
	case StatusCompleted, StatusCancelled:
		return PhaseCompleted
	default:
		return 0
	}
}

// MarshalText encodes the status as its snake_case name.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a snake_case name.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

var phaseSegments = map[Phase]string{
	PhaseQuoting:    "quotes",
	PhaseCollection: "collections",
	PhaseProcessing: "processing",
	PhaseCompleted:  "completed",
}

// Segment is the URL path segment of the phase's section.
func (p Phase) Segment() string {
	return phaseSegments[p]
}

// Phases lists the phases in lifecycle order.
func Phases() []Phase {
	return []Phase{PhaseQuoting, PhaseCollection, PhaseProcessing, PhaseCompleted}
}

func (p Phase) String() string {
	switch p {
	case PhaseQuoting:
		return "quoting"
	case PhaseCollection:
		return "collection"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}
