package documents

import (
	"fmt"
	"strings"
	"time"
)

const mimePDF = "application/pdf"

// Document describes one generated artifact tied to a job.
type Document struct {
	ID               string     `json:"id"`
	JobID            int64      `json:"jobId"`
	Kind             Kind       `json:"kind"`
	OriginalFilename string     `json:"originalFilename"`
	StoredFilename   string     `json:"storedFilename"`
	StoragePath      string     `json:"-"`
	StorageProvider  string     `json:"-"`
	MimeType         string     `json:"mimeType"`
	SizeBytes        int64      `json:"sizeBytes"`
	Checksum         string     `json:"checksum"`
	ExternalID       *string    `json:"externalId,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// JobCode recovers the job code from the original filename.
func (d Document) JobCode() string {
	return strings.TrimSuffix(d.OriginalFilename, "-"+d.Kind.Label()+".pdf")
}

// FileName is the logical name of a kind's document for a job, e.g. J-100-CollectionManifest.pdf.
func FileName(jobCode string, kind Kind) string {
	return fmt.Sprintf("%s-%s.pdf", jobCode, kind.Label())
}

// StoragePath builds the blob key for a document. Mutable kinds live at the
// canonical jobs/{code}/{code}-{Label}.pdf; immutable kinds append the external
// id so every attestation keeps its own bytes.
func StoragePath(jobCode string, kind Kind, externalID string) string {
	name := FileName(jobCode, kind)
	if !kind.Mutable() && externalID != "" {
		name = fmt.Sprintf("%s-%s-%s.pdf", jobCode, kind.Label(), externalID)
	}
	return "jobs/" + jobCode + "/" + name
}
