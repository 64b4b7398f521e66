package server

import (
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/documents"
	"docflow-backend/internal/folders"
	"docflow-backend/internal/jobs"
	"docflow-backend/internal/services/health"
	"docflow-backend/internal/shared/config"
	"docflow-backend/internal/shared/metrics"
	"docflow-backend/internal/shared/server/middleware"
)

const uploadRateGroup = "UPLOAD"

// Handlers are the HTTP surfaces mounted by NewRouter.
type Handlers struct {
	Health    *health.Service
	Jobs      *jobs.Handler
	Documents *documents.Handler
	Folders   *folders.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Routes are served both at the root and under cfg.APIPrefix.
func NewRouter(cfg config.Config, h Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	limiter := middleware.NewRateLimiter(nil)
	uploadLimit := middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: uploadRateGroup,
		Limiter:      limiter,
		Rules: map[string]middleware.RateLimitRule{
			uploadRateGroup: {Rate: cfg.UploadRate, Burst: cfg.UploadBurst},
		},
	})
	if cfg.UploadRate <= 0 {
		uploadLimit = func(c *gin.Context) { c.Next() }
	}

	mount := func(rg *gin.RouterGroup) {
		if h.Health != nil {
			rg.GET("/health", h.Health.Handler())
		}
		rg.GET("/metrics", metrics.Handler())
		if h.Jobs != nil {
			h.Jobs.RegisterRoutes(rg, uploadLimit)
		}
		if h.Documents != nil {
			h.Documents.RegisterRoutes(rg, uploadLimit)
		}
		if h.Folders != nil {
			h.Folders.RegisterRoutes(rg)
		}
	}

	mount(&r.RouterGroup)
	if cfg.APIPrefix != "" {
		mount(r.Group(cfg.APIPrefix))
	}
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
