package documents

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/server/respond"
	"wasteops-backend/internal/shared/util"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches staff document routes to a /jobs/:id group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents", h.list)
	rg.GET("/documents/:kind", h.current)
	rg.GET("/documents/:kind/download", h.download)
}

// RegisterPublicRoutes attaches the unauthenticated certificate routes.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/certificates/:externalId", h.publicGet)
	rg.GET("/certificates/:externalId/download", h.publicDownload)
	rg.GET("/certificates/:externalId/verify", h.publicVerify)
}

func (h *Handler) list(c *gin.Context) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return
	}
	docs, err := h.Svc.List(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err, "failed to list documents")
		return
	}
	respond.OK(c, gin.H{"jobId": jobID, "documents": docs})
}

func (h *Handler) current(c *gin.Context) {
	doc, ok := h.lookupCurrent(c)
	if !ok {
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) download(c *gin.Context) {
	doc, ok := h.lookupCurrent(c)
	if !ok {
		return
	}
	h.stream(c, doc)
}

func (h *Handler) publicGet(c *gin.Context) {
	doc, err := h.Svc.Public(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		writeError(c, err, "failed to fetch certificate")
		return
	}
	respond.OK(c, doc)
}

func (h *Handler) publicDownload(c *gin.Context) {
	doc, err := h.Svc.Public(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		writeError(c, err, "failed to fetch certificate")
		return
	}
	h.stream(c, doc)
}

func (h *Handler) publicVerify(c *gin.Context) {
	v, err := h.Svc.Verify(c.Request.Context(), c.Param("externalId"))
	if err != nil {
		writeError(c, err, "failed to verify certificate")
		return
	}
	respond.OK(c, v)
}

func (h *Handler) lookupCurrent(c *gin.Context) (Document, bool) {
	jobID, ok := jobIDParam(c)
	if !ok {
		return Document{}, false
	}
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), gin.H{"field": "kind"})
		return Document{}, false
	}
	doc, err := h.Svc.Current(c.Request.Context(), jobID, kind)
	if err != nil {
		writeError(c, err, "failed to fetch document")
		return Document{}, false
	}
	return doc, true
}

func (h *Handler) stream(c *gin.Context, doc Document) {
	reader, err := h.Svc.Open(c.Request.Context(), doc)
	if err != nil {
		writeError(c, err, "failed to load document")
		return
	}
	defer reader.Close()

	name, err := util.SanitizeFileName(doc.OriginalFilename)
	if err != nil {
		name = "document.pdf"
	}
	c.Header("Content-Type", doc.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Checksum-Sha256", doc.Checksum)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

func jobIDParam(c *gin.Context) (int64, bool) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || jobID <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid job id", gin.H{"field": "id"})
		return 0, false
	}
	return jobID, true
}

func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusServiceUnavailable, "storage_error", fallback, nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
