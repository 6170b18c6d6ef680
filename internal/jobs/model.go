package jobs

import (
	"strings"
	"time"
)

// Job is a collection job and the single source of truth for its status.
type Job struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	Status         Status     `json:"status"`
	ClientRef      string     `json:"clientRef"`
	ClientName     string     `json:"clientName"`
	AddressLine1   string     `json:"addressLine1"`
	AddressLine2   string     `json:"addressLine2,omitempty"`
	City           string     `json:"city"`
	Postcode       string     `json:"postcode"`
	SuggestedDate  *time.Time `json:"suggestedDate,omitempty"`
	RequestedDate  *time.Time `json:"requestedDate,omitempty"`
	CollectionDate *time.Time `json:"collectionDate,omitempty"`
	QuoteAmount    *string    `json:"quoteAmount,omitempty"`
	QuoteNotes     string     `json:"quoteNotes,omitempty"`

	CustomerSignature []byte `json:"-"`
	CustomerName      string `json:"customerName,omitempty"`
	DriverSignature   []byte `json:"-"`
	DriverName        string `json:"driverName,omitempty"`
	StaffSignature    []byte `json:"-"`
	StaffName         string `json:"staffName,omitempty"`
	ItemsConfirmed    bool   `json:"itemsConfirmed"`

	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CollectedAt *time.Time `json:"collectedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	Items []Item `json:"items"`
}

// Item is a line item collected as part of a job.
type Item struct {
	ID          int64  `json:"id"`
	JobID       int64  `json:"jobId"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
	Hazardous   bool   `json:"hazardous"`
	DataBearing bool   `json:"dataBearing"`
}

var hazardousCategories = map[string]bool{
	"batteries":         true,
	"crt":               true,
	"crt monitors":      true,
	"fluorescent tubes": true,
	"refrigeration":     true,
	"fridges":           true,
	"chemicals":         true,
	"toner":             true,
}

var dataBearingCategories = map[string]bool{
	"it":            true,
	"computers":     true,
	"laptops":       true,
	"servers":       true,
	"hard drives":   true,
	"storage media": true,
	"phones":        true,
	"mobile phones": true,
	"tablets":       true,
}

func categoryIn(set map[string]bool, values ...string) bool {
	for _, v := range values {
		if set[strings.ToLower(strings.TrimSpace(v))] {
			return true
		}
	}
	return false
}

// IsHazardous reports whether the item is flagged, or categorised, as hazardous.
func (it Item) IsHazardous() bool {
	return it.Hazardous || categoryIn(hazardousCategories, it.Category, it.Subcategory)
}

// IsDataBearing reports whether the item is flagged, or categorised, as holding data.
func (it Item) IsDataBearing() bool {
	return it.DataBearing || categoryIn(dataBearingCategories, it.Category, it.Subcategory)
}

// HasHazardous reports whether any item is hazardous.
func (j Job) HasHazardous() bool {
	for _, it := range j.Items {
		if it.IsHazardous() {
			return true
		}
	}
	return false
}

// HasDataBearing reports whether any item holds data.
func (j Job) HasDataBearing() bool {
	for _, it := range j.Items {
		if it.IsDataBearing() {
			return true
		}
	}
	return false
}

// Address returns the non-empty address lines.
func (j Job) Address() []string {
	var out []string
	for _, ln := range []string{j.AddressLine1, j.AddressLine2, j.City, j.Postcode} {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}

func (j Job) clone() Job {
	out := j
	out.Items = append([]Item(nil), j.Items...)
	out.CustomerSignature = append([]byte(nil), j.CustomerSignature...)
	out.DriverSignature = append([]byte(nil), j.DriverSignature...)
	out.StaffSignature = append([]byte(nil), j.StaffSignature...)
	return out
}

// NewJob is the input to RequestQuote.
type NewJob struct {
	ClientRef    string `json:"clientRef"`
	ClientName   string `json:"clientName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	Postcode     string `json:"postcode"`
	Items        []Item `json:"items"`
}

func (n NewJob) validate() error {
	if strings.TrimSpace(n.ClientRef) == "" {
		return missing("clientRef")
	}
	if len(n.Items) == 0 {
		return missing("items")
	}
	for _, it := range n.Items {
		if strings.TrimSpace(it.Category) == "" {
			return missing("items.category")
		}
		if it.Quantity < 0 {
			return invalid("items.quantity", "must not be negative")
		}
	}
	return nil
}
