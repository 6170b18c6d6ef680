package jobs

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Payload carries the inputs of a transition. Only the fields an action
// needs are read.
type Payload struct {
	Amount        string `json:"amount,omitempty"`
	SuggestedDate string `json:"suggestedDate,omitempty"`
	Notes         string `json:"notes,omitempty"`
	RequestedDate string `json:"requestedDate,omitempty"`
	Date          string `json:"date,omitempty"`

	CustomerSignature []byte `json:"customerSignature,omitempty"`
	CustomerName      string `json:"customerName,omitempty"`
	DriverSignature   []byte `json:"driverSignature,omitempty"`
	DriverName        string `json:"driverName,omitempty"`
	StaffSignature    []byte `json:"staffSignature,omitempty"`
	StaffName         string `json:"staffName,omitempty"`
	ItemsConfirmed    bool   `json:"itemsConfirmed,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// apply validates p for action and writes its effects onto job. It does not
// touch job.Status.
func (p Payload) apply(action Action, job *Job, now time.Time) error {
	switch action {
	case ActionProvideQuote:
		if strings.TrimSpace(p.Amount) == "" {
			return missing("amount")
		}
		if strings.TrimSpace(p.SuggestedDate) == "" {
			return missing("suggestedDate")
		}
		amount, err := normalizeAmount(p.Amount)
		if err != nil {
			return err
		}
		date, err := parseDate("suggestedDate", p.SuggestedDate)
		if err != nil {
			return err
		}
		job.QuoteAmount = &amount
		job.SuggestedDate = &date
		job.QuoteNotes = strings.TrimSpace(p.Notes)

	case ActionRequestCollection:
		if strings.TrimSpace(p.RequestedDate) == "" {
			return missing("requestedDate")
		}
		date, err := parseDate("requestedDate", p.RequestedDate)
		if err != nil {
			return err
		}
		job.RequestedDate = &date

	case ActionDeclineRequest:
		job.RequestedDate = nil

	case ActionSchedule:
		if strings.TrimSpace(p.Date) == "" {
			return missing("date")
		}
		date, err := parseDate("date", p.Date)
		if err != nil {
			return err
		}
		job.CollectionDate = &date

	case ActionPostpone:
		job.CollectionDate = nil

	case ActionMarkCollected:
		if len(p.CustomerSignature) == 0 {
			return missing("customerSignature")
		}
		if len(p.DriverSignature) == 0 {
			return missing("driverSignature")
		}
		job.CustomerSignature = p.CustomerSignature
		job.CustomerName = strings.TrimSpace(p.CustomerName)
		job.DriverSignature = p.DriverSignature
		job.DriverName = strings.TrimSpace(p.DriverName)
		job.CollectedAt = &now

	case ActionReceiveAtFacility:
		if !p.ItemsConfirmed {
			return invalid("itemsConfirmed", "items must be confirmed")
		}
		if len(p.StaffSignature) == 0 {
			return missing("staffSignature")
		}
		if strings.TrimSpace(p.StaffName) == "" {
			return missing("staffName")
		}
		job.ItemsConfirmed = true
		job.StaffSignature = p.StaffSignature
		job.StaffName = strings.TrimSpace(p.StaffName)

	case ActionComplete:
		job.CompletedAt = &now

	case ActionCancel:
		job.CancelledAt = &now
	}
	return nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid(field, "expected YYYY-MM-DD")
	}
	return t, nil
}

// normalizeAmount accepts a positive decimal with at most two fraction
// digits and returns it with exactly two, e.g. "150" -> "150.00".
func normalizeAmount(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || !digits(whole) || (hasFrac && (frac == "" || len(frac) > 2 || !digits(frac))) {
		return "", invalid("amount", "must be a positive decimal with up to two places")
	}
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "0" && frac == "00" {
		return "", invalid("amount", "must be greater than zero")
	}
	if len(whole) > 10 {
		return "", invalid("amount", "too large")
	}
	return whole + "." + frac, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
