package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasteops-backend/internal/audit"
	"wasteops-backend/internal/documents"
	"wasteops-backend/internal/guard"
	"wasteops-backend/internal/jobs"
	"wasteops-backend/internal/services/health"
	"wasteops-backend/internal/shared/config"
	"wasteops-backend/internal/shared/metrics"
	"wasteops-backend/internal/shared/server/middleware"
	"wasteops-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config          config.Config
	JobHandler      *jobs.Handler
	AuditHandler    *audit.Handler
	DocumentHandler *documents.Handler
	Guard           guard.Lookup
	Health          *health.Service
	RateLimits      map[string]middleware.RateLimitRule
}

// DefaultRateLimits caps staff traffic per identity.
var DefaultRateLimits = map[string]middleware.RateLimitRule{
	"READ":  {Rate: 20, Burst: 40},
	"WRITE": {Rate: 5, Burst: 10},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		body, ok := deps.Health.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, body)
	})
	api.GET("/metrics", metrics.Handler())

	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterPublicRoutes(api)
	}

	rules := deps.RateLimits
	if rules == nil {
		rules = DefaultRateLimits
	}
	staff := api.Group("",
		middleware.Auth(cfg.Env),
		middleware.RateLimit(middleware.RateLimitConfig{Rules: rules, GroupFor: middleware.GroupByMethod}),
		middleware.Timeout(cfg.TransitionTimeout),
	)
	registerMeRoutes(staff)

	if deps.JobHandler != nil {
		deps.JobHandler.RegisterRoutes(staff.Group("/jobs"))
	}
	job := staff.Group("/jobs/:id")
	if deps.AuditHandler != nil {
		deps.AuditHandler.RegisterRoutes(job)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(job)
	}
	if deps.JobHandler != nil && deps.Guard != nil {
		for _, phase := range jobs.Phases() {
			section := job.Group("/"+phase.Segment(), guard.Middleware(deps.Guard))
			deps.JobHandler.RegisterSection(section, phase)
		}
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
