package jobs

import "fmt"

// Action names a state-changing operation on a job.
type Action string

const (
	ActionRequestQuote      Action = "request_quote"
	ActionProvideQuote      Action = "provide_quote"
	ActionRejectQuote       Action = "reject_quote"
	ActionAcceptQuote       Action = "accept_quote"
	ActionRequestCollection Action = "request_collection"
	ActionDeclineRequest    Action = "decline_request"
	ActionSchedule          Action = "schedule"
	ActionPostpone          Action = "postpone"
	ActionMarkCollected     Action = "mark_collected"
	ActionReceiveAtFacility Action = "receive_at_facility"
	ActionStartProcessing   Action = "start_processing"
	ActionComplete          Action = "complete"
	ActionCancel            Action = "cancel"
)

type actionRule struct {
	target Status
	// sources narrows the table edges into target; nil means any status
	// with an edge into target.
	sources []Status
	// audit is the template key written when the action commits.
	audit string
	// system entries are templated messages rather than staff notes.
	system bool
}

var actionRules = map[Action]actionRule{
	ActionRequestQuote:      {target: StatusQuoteRequested, audit: "job_created", system: true},
	ActionProvideQuote:      {target: StatusQuoteProvided, sources: []Status{StatusQuoteRequested}, audit: "quote_provided"},
	ActionRejectQuote:       {target: StatusQuoteRejected, sources: []Status{StatusQuoteProvided}, audit: "quote_rejected"},
	ActionAcceptQuote:       {target: StatusNeedsScheduling, sources: []Status{StatusQuoteProvided}, audit: "quote_accepted"},
	ActionRequestCollection: {target: StatusRequestPending, sources: []Status{StatusNeedsScheduling}, audit: "collection_request"},
	ActionDeclineRequest:    {target: StatusNeedsScheduling, sources: []Status{StatusRequestPending}, audit: "request_declined"},
	ActionSchedule:          {target: StatusScheduled, sources: []Status{StatusNeedsScheduling, StatusRequestPending, StatusPostponed}, audit: "job_scheduled"},
	ActionPostpone:          {target: StatusPostponed, sources: []Status{StatusScheduled}, audit: "job_postponed"},
	ActionMarkCollected:     {target: StatusCollected, sources: []Status{StatusScheduled}, audit: "job_collected", system: true},
	ActionReceiveAtFacility: {target: StatusReceivedAtFacility, sources: []Status{StatusCollected}, audit: "received_facility"},
	ActionStartProcessing:   {target: StatusProcessing, sources: []Status{StatusReceivedAtFacility}, audit: "processing_started"},
	ActionComplete:          {target: StatusCompleted, sources: []Status{StatusProcessing}, audit: "job_completed", system: true},
	ActionCancel:            {target: StatusCancelled, audit: "job_cancelled"},
}

// Actions lists every action in lifecycle order.
func Actions() []Action {
	return []Action{
		ActionRequestQuote, ActionProvideQuote, ActionRejectQuote, ActionAcceptQuote,
		ActionRequestCollection, ActionDeclineRequest, ActionSchedule, ActionPostpone,
		ActionMarkCollected, ActionReceiveAtFacility, ActionStartProcessing, ActionComplete,
		ActionCancel,
	}
}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionRules[a]; !ok {
		return "", &TransitionError{Kind: ErrValidation, Field: "action", Detail: fmt.Sprintf("unknown action %q", s)}
	}
	return a, nil
}

// Target is the status an action moves a job to.
func (a Action) Target() Status {
	return actionRules[a].target
}

// Permits reports whether a may be applied to a job currently in from.
// request_quote only happens at creation and is never permitted here.
func (a Action) Permits(from Status) bool {
	rule, ok := actionRules[a]
	if !ok || a == ActionRequestQuote {
		return false
	}
	if !CanTransition(from, rule.target) {
		return false
	}
	if rule.sources == nil {
		return true
	}
	for _, s := range rule.sources {
		if s == from {
			return true
		}
	}
	return false
}

func (a Action) auditKey() string {
	return actionRules[a].audit
}

func (a Action) systemAudit() bool {
	return actionRules[a].system
}
