package docgen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"wasteops-backend/internal/documents"
)

// Renderer turns a snapshot into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, snap Snapshot, kind documents.Kind, opts Options) ([]byte, error)
}

// PDFRenderer renders layouts with pdfcpu.
type PDFRenderer struct{}

var configOnce sync.Once

func pdfConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	// Plain objects and a classic xref table, so the trailer and info dict
	// can be pinned in place.
	cfg.WriteObjectStream = false
	cfg.WriteXRefStream = false
	return cfg
}

// Render builds the layout for kind and writes it as a PDF. The same snapshot
// and options always produce the same bytes.
func (PDFRenderer) Render(ctx context.Context, snap Snapshot, kind documents.Kind, opts Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	layout, err := Build(snap, kind, opts)
	if err != nil {
		return nil, err
	}
	desc, err := json.Marshal(toPDFCPU(layout))
	if err != nil {
		return nil, fmt.Errorf("%w: encode layout: %v", ErrRender, err)
	}

	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &out, pdfConfig()); err != nil {
		return nil, fmt.Errorf("%w: pdfcpu create %s: %v", ErrRender, kind, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pin(out.Bytes(), desc, opts.IssuedAt), nil
}

var (
	infoDatePattern = regexp.MustCompile(`/(?:CreationDate|ModDate)\(D:[^)]*\)`)
	fileIDPattern   = regexp.MustCompile(`/ID\s*\[\s*<[0-9A-Fa-f]+>\s*<[0-9A-Fa-f]+>\s*\]`)
	hexPattern      = regexp.MustCompile(`<[0-9A-Fa-f]+>`)
)

// pin replaces the wall-clock dates and file identifier pdfcpu stamps on
// every write with values derived from the layout and issue time. Each
// replacement has the length of the original so xref offsets stay valid.
func pin(pdf, desc []byte, issuedAt time.Time) []byte {
	if issuedAt.IsZero() {
		return pdf
	}
	date := []byte(types.DateString(issuedAt.UTC()))
	pdf = infoDatePattern.ReplaceAllFunc(pdf, func(m []byte) []byte {
		open := bytes.IndexByte(m, '(')
		if len(m)-open-2 != len(date) {
			return m
		}
		out := append([]byte(nil), m[:open+1]...)
		out = append(out, date...)
		return append(out, ')')
	})

	h := sha256.New()
	h.Write(desc)
	h.Write(date)
	id := hex.EncodeToString(h.Sum(nil))
	return fileIDPattern.ReplaceAllFunc(pdf, func(m []byte) []byte {
		return hexPattern.ReplaceAllFunc(m, func(lit []byte) []byte {
			n := len(lit) - 2
			if n > len(id) {
				return lit
			}
			return []byte("<" + id[:n] + ">")
		})
	})
}

// PageCount reports the number of pages in a rendered PDF.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), pdfConfig())
}

type pdfcpuDoc struct {
	Paper  string                `json:"paper"`
	Origin string                `json:"origin"`
	Pages  map[string]pdfcpuPage `json:"pages"`
}

type pdfcpuPage struct {
	Content pdfcpuContent `json:"content"`
}

type pdfcpuContent struct {
	Text []pdfcpuText `json:"text"`
}

type pdfcpuText struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  pdfcpuFont `json:"font"`
}

type pdfcpuFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

func toPDFCPU(l Layout) pdfcpuDoc {
	doc := pdfcpuDoc{
		Paper:  "A4P",
		Origin: "UpperLeft",
		Pages:  make(map[string]pdfcpuPage, len(l.Pages)),
	}
	for i, p := range l.Pages {
		texts := make([]pdfcpuText, 0, len(p))
		for _, ln := range p {
			texts = append(texts, pdfcpuText{
				Value: ln.Text,
				Pos:   [2]float64{ln.X, ln.Y},
				Font:  pdfcpuFont{Name: ln.Font, Size: ln.Size},
			})
		}
		doc.Pages[strconv.Itoa(i+1)] = pdfcpuPage{Content: pdfcpuContent{Text: texts}}
	}
	return doc
}
