package guard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/metrics"
	"wasteops-backend/internal/shared/server/middleware"
	"wasteops-backend/internal/shared/server/respond"
	"wasteops-backend/internal/shared/telemetry"
)

// Middleware redirects requests whose section does not match the job's
// phase. It reads the job id from the ":id" path parameter.
func Middleware(lookup Lookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || jobID <= 0 {
			respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
			return
		}
		c.Set(middleware.JobIDKey, jobID)

		path := c.Request.URL.Path
		decision, err := Check(c.Request.Context(), lookup, jobID, path)
		if err != nil {
			if IsNotFound(err) {
				respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
				return
			}
			respond.Error(c, http.StatusServiceUnavailable, "storage_error", "failed to load job", nil)
			return
		}
		if decision.Proceed() {
			c.Next()
			return
		}

		status := http.StatusSeeOther
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			status = http.StatusFound
		}
		metrics.IncGuardRedirect()
		telemetry.Info("guard.redirect", map[string]any{
			"job_id":     jobID,
			"path":       path,
			"phase":      decision.Phase.String(),
			"location":   decision.RedirectTo,
			"request_id": middleware.RequestIDFromContext(c),
		})
		c.Redirect(status, decision.RedirectTo)
		c.Abort()
	}
}
