package documents

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
)

const maxUploadSize = 100 << 20 // 100MB

// Handler wires HTTP handlers to the document service.
type Handler struct {
	Svc    *Service
	Prefix string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, prefix string) *Handler {
	return &Handler{Svc: svc, Prefix: prefix}
}

// RegisterRoutes attaches document routes to the router group. Upload routes
// go on uploads so they can carry a rate limit.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	rg.POST("/word/generate", h.generate)
	rg.POST("/word/convert", append(uploads, h.convert)...)
	rg.GET("/word/documents", h.list)
	rg.GET("/word/documents/:id/download", h.download)
	rg.PATCH("/word/documents/:id", h.update)
	rg.POST("/ocr/jobs/:id/word", h.fromJob)
}

func (h *Handler) generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	doc, err := h.Svc.Generate(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		h.fail(c, err, "failed to generate document")
		return
	}
	c.Set(respond.KeyDocumentID, doc.ID)
	respond.JSON(c, http.StatusCreated, documentResponse{Document: ToView(doc, h.Prefix)})
}

func (h *Handler) convert(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader.Filename == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	in := ConvertInput{
		Title:    c.PostForm("title"),
		FileName: fileHeader.Filename,
	}
	if raw := strings.TrimSpace(c.PostForm("job_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "job_id must be an integer", nil)
			return
		}
		in.JobID = &id
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()
	in.Content = file

	doc, err := h.Svc.Convert(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to convert document")
		return
	}
	c.Set(respond.KeyDocumentID, doc.ID)
	respond.JSON(c, http.StatusCreated, documentResponse{Document: ToView(doc, h.Prefix)})
}

func (h *Handler) fromJob(c *gin.Context) {
	id, ok := parseID(c, respond.KeyJobID, "invalid job id")
	if !ok {
		return
	}
	var req fromJobRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	doc, err := h.Svc.FromJob(c.Request.Context(), id, req.Title)
	if err != nil {
		h.fail(c, err, "failed to build document from job")
		return
	}
	c.Set(respond.KeyDocumentID, doc.ID)
	respond.JSON(c, http.StatusCreated, documentResponse{Document: ToView(doc, h.Prefix)})
}

func (h *Handler) list(c *gin.Context) {
	var filter ListFilter
	if v := c.Query("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "folder_id must be an integer", nil)
			return
		}
		filter.FolderID = &id
	}
	items, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "failed to list documents")
		return
	}
	resp := make([]DocumentView, 0, len(items))
	for _, doc := range items {
		resp = append(resp, ToView(doc, h.Prefix))
	}
	respond.OK(c, resp)
}

func (h *Handler) download(c *gin.Context) {
	id, ok := parseID(c, respond.KeyDocumentID, "invalid document id")
	if !ok {
		return
	}
	rc, doc, err := h.Svc.Open(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to open document")
		return
	}
	defer rc.Close()
	respond.Attachment(c, doc.FileName, doc.MimeType, rc)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c, respond.KeyDocumentID, "invalid document id")
	if !ok {
		return
	}
	var req updateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	doc, err := h.Svc.SetFolder(c.Request.Context(), id, req.FolderID)
	if err != nil {
		h.fail(c, err, "failed to update document")
		return
	}
	respond.OK(c, ToView(doc, h.Prefix))
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrFileMissing):
		respond.Error(c, http.StatusNotFound, "file_missing", "document file is missing", nil)
	case errors.Is(err, ErrJobNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrJobNotReady):
		respond.Error(c, http.StatusConflict, "job_not_ready", err.Error(), nil)
	case errors.Is(err, ErrFolderNotFound):
		respond.Error(c, http.StatusBadRequest, "folder_not_found", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

// parseID reads the :id param and tags the request with it under key.
func parseID(c *gin.Context, key, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", message, nil)
		return 0, false
	}
	c.Set(key, id)
	return id, true
}
