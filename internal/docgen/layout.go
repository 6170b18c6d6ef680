package docgen

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wasteops-backend/internal/documents"
)

// ErrRender is returned when a document cannot be produced from its inputs.
var ErrRender = errors.New("render error")

const (
	pageHeight   = 842.0
	marginLeft   = 50.0
	marginTop    = 60.0
	marginBottom = 60.0
	lineHeight   = 16.0

	// One core font per document keeps pdfcpu's font object numbering stable.
	fontFace = "Helvetica"
)

// Line is a single positioned run of text. Y grows downwards from the top edge.
type Line struct {
	Text string
	X    float64
	Y    float64
	Font string
	Size int
}

// Page is a list of lines.
type Page []Line

// Layout is the fully positioned content of a document.
type Layout struct {
	Title string
	Pages []Page
}

// Text joins every line, in page order.
func (l Layout) Text() string {
	var b strings.Builder
	for _, p := range l.Pages {
		for _, ln := range p {
			b.WriteString(ln.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type writer struct {
	pages []Page
	y     float64
}

func newWriter() *writer {
	return &writer{pages: []Page{{}}, y: marginTop}
}

func (w *writer) add(text, font string, size int, indent float64) {
	if w.y > pageHeight-marginBottom {
		w.pages = append(w.pages, Page{})
		w.y = marginTop
	}
	last := len(w.pages) - 1
	w.pages[last] = append(w.pages[last], Line{Text: text, X: marginLeft + indent, Y: w.y, Font: font, Size: size})
	w.y += lineHeight
	if size > 12 {
		w.y += float64(size - 12)
	}
}

func (w *writer) heading(text string) { w.add(text, fontFace, 12, 0) }
func (w *writer) text(text string)    { w.add(text, fontFace, 10, 0) }
func (w *writer) indented(text string) {
	w.add(text, fontFace, 10, 12)
}
func (w *writer) gap() { w.y += lineHeight / 2 }

// Build produces the deterministic layout for kind. It fails with ErrRender
// when the snapshot lacks what the kind requires.
func Build(snap Snapshot, kind documents.Kind, opts Options) (Layout, error) {
	if strings.TrimSpace(snap.JobCode) == "" {
		return Layout{}, fmt.Errorf("%w: job code missing", ErrRender)
	}

	var items []Item
	switch kind {
	case documents.KindCollectionManifest:
		items = snap.Items
	case documents.KindHazardousWasteNote:
		items = snap.filter(func(it Item) bool { return it.Hazardous })
	case documents.KindDataDestructionCertificate:
		items = snap.filter(func(it Item) bool { return it.DataBearing })
		if strings.TrimSpace(opts.ExternalID) == "" {
			return Layout{}, fmt.Errorf("%w: certificate reference missing", ErrRender)
		}
	default:
		return Layout{}, fmt.Errorf("%w: unsupported kind %s", ErrRender, kind)
	}
	if len(items) == 0 {
		return Layout{}, fmt.Errorf("%w: %s has no items", ErrRender, kind)
	}
	if kind != documents.KindDataDestructionCertificate {
		if !snap.Customer.Present() {
			return Layout{}, fmt.Errorf("%w: customer signature missing", ErrRender)
		}
		if !snap.Driver.Present() {
			return Layout{}, fmt.Errorf("%w: driver signature missing", ErrRender)
		}
	}

	w := newWriter()
	if opts.CompanyName != "" {
		w.add(opts.CompanyName, fontFace, 10, 0)
	}
	w.add(kind.Title(), fontFace, 18, 0)
	w.gap()

	w.heading("Job")
	w.text("Job number: " + snap.JobCode)
	if snap.ClientName != "" {
		w.text("Client: " + snap.ClientName)
	}
	if snap.ClientRef != "" {
		w.text("Client reference: " + snap.ClientRef)
	}
	if kind == documents.KindDataDestructionCertificate {
		w.text("Certificate reference: " + opts.ExternalID)
	}
	if snap.CollectionDate != nil {
		w.text("Collection date: " + snap.CollectionDate.Format("2006-01-02"))
	}
	if snap.CollectedAt != nil {
		w.text("Collected at: " + snap.CollectedAt.UTC().Format(time.RFC3339))
	}
	if kind == documents.KindDataDestructionCertificate && snap.CompletedAt != nil {
		w.text("Completed at: " + snap.CompletedAt.UTC().Format(time.RFC3339))
	}
	w.gap()

	if len(snap.Address) > 0 {
		w.heading("Collection address")
		for _, ln := range snap.Address {
			if strings.TrimSpace(ln) != "" {
				w.text(ln)
			}
		}
		w.gap()
	}

	w.heading("Items")
	for _, it := range items {
		w.indented(itemLine(it))
	}
	w.gap()

	switch kind {
	case documents.KindHazardousWasteNote:
		w.text("The waste described above has been classified as hazardous and consigned for licensed treatment.")
		w.gap()
	case documents.KindDataDestructionCertificate:
		w.text("The data-bearing items listed above have been securely destroyed and the data rendered unrecoverable.")
		w.gap()
	}

	w.heading("Signatures")
	signature(w, "Customer", snap.Customer)
	signature(w, "Driver", snap.Driver)
	signature(w, "Facility staff", snap.Staff)
	w.gap()

	w.add("Issued "+opts.IssuedAt.UTC().Format(time.RFC3339), fontFace, 8, 0)

	return Layout{Title: kind.Title(), Pages: w.pages}, nil
}

func signature(w *writer, role string, sig Signature) {
	if !sig.Present() {
		return
	}
	name := sig.Name
	if name == "" {
		name = "(unnamed)"
	}
	w.text(fmt.Sprintf("%s: %s  [sig %s]", role, name, sig.Fingerprint()))
}

func itemLine(it Item) string {
	qty := it.Quantity
	if qty <= 0 {
		qty = 1
	}
	label := it.Category
	if it.Subcategory != "" {
		label += " / " + it.Subcategory
	}
	line := fmt.Sprintf("%d x %s", qty, label)
	if it.Description != "" {
		line += " - " + it.Description
	}
	var flags []string
	if it.Hazardous {
		flags = append(flags, "HAZARDOUS")
	}
	if it.DataBearing {
		flags = append(flags, "DATA-BEARING")
	}
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	return line
}
