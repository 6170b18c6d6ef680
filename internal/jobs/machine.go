package jobs

// transitions is the adjacency table: source status to allowed targets.
// Terminal statuses have no entry.
var transitions = map[Status][]Status{
	StatusQuoteRequested:     {StatusQuoteProvided, StatusCancelled},
	StatusQuoteProvided:      {StatusQuoteRejected, StatusNeedsScheduling, StatusCancelled},
	StatusNeedsScheduling:    {StatusRequestPending, StatusScheduled, StatusCancelled},
	StatusRequestPending:     {StatusScheduled, StatusNeedsScheduling, StatusCancelled},
	StatusScheduled:          {StatusPostponed, StatusCollected, StatusCancelled},
	StatusPostponed:          {StatusScheduled, StatusCancelled},
	StatusCollected:          {StatusReceivedAtFacility, StatusCancelled},
	StatusReceivedAtFacility: {StatusProcessing, StatusCancelled},
	StatusProcessing:         {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is an edge of the table.
func CanTransition(from, to Status) bool {
	for _, target := range transitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Allowed returns the targets reachable in one step from s.
func Allowed(s Status) []Status {
	return append([]Status(nil), transitions[s]...)
}

// AllowedActions lists the actions that may be applied to a job in status s.
func AllowedActions(s Status) []Action {
	var out []Action
	for _, a := range Actions() {
		if a.Permits(s) {
			out = append(out, a)
		}
	}
	return out
}
