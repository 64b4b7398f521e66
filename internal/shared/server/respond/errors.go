package respond

import (
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/telemetry"
)

// Context keys handlers set so log lines name the entity a request touched.
const (
	KeyJobID      = "jobId"
	KeyDocumentID = "documentId"
	KeyFolderID   = "folderId"
)

var entityFields = []struct{ key, field string }{
	{KeyJobID, "job_id"},
	{KeyDocumentID, "document_id"},
	{KeyFolderID, "folder_id"},
}

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// EntityFields copies the entity ids tagged on c into fields.
func EntityFields(c *gin.Context, fields map[string]any) {
	for _, ef := range entityFields {
		if v, ok := c.Get(ef.key); ok {
			fields[ef.field] = v
		}
	}
}

// Error logs the failure and aborts with the {error:{code,message,details}}
// envelope. 5xx statuses log at error level, the rest at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	EntityFields(c, fields)
	if status >= 500 {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}
