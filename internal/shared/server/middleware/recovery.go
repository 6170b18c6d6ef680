package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/server/respond"
	"wasteops-backend/internal/shared/telemetry"
)

// Recovery turns a panic in a handler into a 500 internal_error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
				"path":       c.FullPath(),
				"method":     c.Request.Method,
			}
			if jobID, ok := c.Get(JobIDKey); ok {
				fields["job_id"] = jobID
			}
			if staffID := StaffIDFromContext(c); staffID != "" {
				fields["staff_id"] = staffID
			}
			telemetry.Error("panic", fields)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
		}()
		c.Next()
	}
}
