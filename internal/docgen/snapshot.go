package docgen

import (
	"time"

	"wasteops-backend/internal/shared/util"
)

// Snapshot is the read-only view of a job that a document is rendered from.
type Snapshot struct {
	JobID          int64
	JobCode        string
	Status         string
	ClientRef      string
	ClientName     string
	Address        []string
	CollectionDate *time.Time
	QuoteAmount    string
	CollectedAt    *time.Time
	CompletedAt    *time.Time
	Items          []Item
	Customer       Signature
	Driver         Signature
	Staff          Signature
}

// Item is one collected line item.
type Item struct {
	Category    string
	Subcategory string
	Quantity    int
	Description string
	Hazardous   bool
	DataBearing bool
}

// Signature pairs a signer with their captured signature image.
type Signature struct {
	Name  string
	Image []byte
}

// Present reports whether an image was captured.
func (s Signature) Present() bool {
	return len(s.Image) > 0
}

// Fingerprint is a short sha256 digest of the signature image.
func (s Signature) Fingerprint() string {
	if !s.Present() {
		return ""
	}
	return util.Checksum(s.Image)[:16]
}

// Options are the render inputs that do not come from the job.
type Options struct {
	IssuedAt    time.Time
	ExternalID  string
	CompanyName string
}

func (s Snapshot) filter(keep func(Item) bool) []Item {
	out := make([]Item, 0, len(s.Items))
	for _, it := range s.Items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// HasHazardous reports whether any item is hazardous.
func (s Snapshot) HasHazardous() bool {
	return len(s.filter(func(it Item) bool { return it.Hazardous })) > 0
}

// HasDataBearing reports whether any item carries data.
func (s Snapshot) HasDataBearing() bool {
	return len(s.filter(func(it Item) bool { return it.DataBearing })) > 0
}
