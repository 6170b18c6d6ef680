package audit

import (
	"fmt"
	"strings"
)

// Templates maps an action name to the text recorded for it. Templates use
// fmt verbs and are filled with the detail arguments supplied by the caller.
type Templates map[string]string

// DefaultTemplates is the message set used for job lifecycle actions.
var DefaultTemplates = Templates{
	"job_created":         "Job Created",
	"quote_provided":      "Quote provided: %s",
	"quote_rejected":      "Quote rejected",
	"quote_accepted":      "Quote accepted",
	"collection_request":  "Collection requested for %s",
	"request_declined":    "Requested collection date declined",
	"job_scheduled":       "Collection scheduled for %s",
	"job_postponed":       "Collection postponed",
	"job_collected":       "Job marked as Collected",
	"received_facility":   "Received at facility by %s",
	"processing_started":  "Processing started",
	"job_completed":       "Job Completed",
	"job_cancelled":       "Job Cancelled",
	"document_issued":     "%s issued (%s)",
	"certificate_issued":  "%s issued with reference %s",
	"document_regenerate": "%s regenerated",
}

// Render fills the template for action. Unknown actions fall back to the
// action name followed by any details so nothing is silently dropped.
func (t Templates) Render(action string, details ...any) string {
	tmpl, ok := t[action]
	if !ok {
		if len(details) == 0 {
			return action
		}
		parts := make([]string, 0, len(details))
		for _, d := range details {
			parts = append(parts, fmt.Sprint(d))
		}
		return action + ": " + strings.Join(parts, ", ")
	}
	if len(details) == 0 {
		if strings.Contains(tmpl, "%") {
			return strings.TrimSpace(strings.SplitN(tmpl, "%", 2)[0])
		}
		return tmpl
	}
	return fmt.Sprintf(tmpl, details...)
}
