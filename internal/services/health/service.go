package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker verifies local state such as the storage layout.
type Checker interface {
	Check() error
}

// Service encapsulates health-related checks.
type Service struct {
	DB      Pinger
	Storage Checker
	Timeout time.Duration
}

// NewService constructs a health service. db may be nil for the in-memory
// store.
func NewService(db Pinger, storage Checker) *Service {
	return &Service{DB: db, Storage: storage, Timeout: 2 * time.Second}
}

// Status runs every check and returns the per-check result. ok is false if
// any check failed.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{"database": "ok", "storage": "ok"}
	ok := true
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.Timeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			checks["database"] = err.Error()
			ok = false
		}
	} else {
		checks["database"] = "memory"
	}
	if s.Storage != nil {
		if err := s.Storage.Check(); err != nil {
			checks["storage"] = err.Error()
			ok = false
		}
	}
	return checks, ok
}

// Handler serves GET /health: 200 with status "ok", or 503 with the failing
// checks.
func (s *Service) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, ok := s.Status(c.Request.Context())
		if !ok {
			respond.Error(c, http.StatusServiceUnavailable, "unhealthy", "health check failed", checks)
			return
		}
		respond.OK(c, gin.H{"status": "ok", "checks": checks})
	}
}
