package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
	"docflow-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope. When the handler had
// already started streaming a body (downloads, folder archives) the
// connection is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = errors.Newf("%v", rec)
			}
			fields := map[string]any{
				"request_id": RequestIDFromContext(c),
				"error":      err.Error(),
				"stack":      string(debug.Stack()),
				"route":      c.FullPath(),
				"method":     c.Request.Method,
				"written":    c.Writer.Written(),
			}
			respond.EntityFields(c, fields)
			telemetry.Error("http.panic", fields)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
		}()
		c.Next()
	}
}
