package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/server/respond"
)

// Handler exposes a job's audit trail.
type Handler struct {
	Log Reader
}

// NewHandler constructs a Handler.
func NewHandler(log Reader) *Handler {
	return &Handler{Log: log}
}

// RegisterRoutes attaches audit routes to a job-scoped router group (":id").
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit", h.list)
}

func (h *Handler) list(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || jobID <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid job id", nil)
		return
	}
	entries, err := h.Log.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load audit trail", nil)
		return
	}
	respond.OK(c, gin.H{"jobId": jobID, "entries": entries})
}
