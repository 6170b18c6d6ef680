package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/shared/telemetry"
)

// Context keys handlers set so the request log can name the job and the
// transition it caused.
const (
	JobIDKey            = "jobId"
	StatusTransitionKey = "statusTransition"
	DocumentKindKey     = "documentKind"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		reqID := RequestIDFromContext(c)

		jobID, _ := c.Get(JobIDKey)
		documentKind, _ := c.Get(DocumentKindKey)
		statusTransition := c.GetString(StatusTransitionKey)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        reqID,
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"route":             c.FullPath(),
			"status":            status,
			"status_transition": statusTransition,
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"staff_id":          StaffIDFromContext(c),
			"job_id":            jobID,
			"document_kind":     documentKind,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
