package jobs

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
)

const maxUploadSize = 100 << 20 // 100MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
	// Prefix is the API mount prefix used when building download links.
	Prefix string
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, prefix string) *Handler {
	return &Handler{Svc: svc, Prefix: prefix}
}

// RegisterRoutes attaches job and settings routes to the router group. The
// uploads handlers run before job submission.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, uploads ...gin.HandlerFunc) {
	rg.GET("/settings/ocr-engine", h.getEngine)
	rg.POST("/settings/ocr-engine", h.setEngine)

	rg.POST("/ocr/jobs", append(uploads, h.create)...)
	rg.GET("/ocr/jobs", h.list)
	rg.GET("/ocr/jobs/:id", h.get)
	rg.PATCH("/ocr/jobs/:id", h.update)
	rg.DELETE("/ocr/jobs/:id", h.delete)
	rg.GET("/ocr/jobs/:id/download", h.download)
}

func (h *Handler) getEngine(c *gin.Context) {
	engine, err := h.Svc.DefaultEngine(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read engine setting", nil)
		return
	}
	respond.OK(c, engineSettingResponse{Engine: engine})
}

func (h *Handler) setEngine(c *gin.Context) {
	var req engineSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	engine, err := h.Svc.SetDefaultEngine(c.Request.Context(), req.Engine)
	if err != nil {
		h.fail(c, err, "failed to store engine setting")
		return
	}
	respond.OK(c, engineSettingResponse{Engine: engine})
}

func (h *Handler) create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	in := SubmitInput{
		FileName:       fileHeader.Filename,
		Content:        file,
		EngineOverride: c.PostForm("engine_override"),
		AutoDetect:     true,
		Language:       c.PostForm("language"),
		Folder:         c.PostForm("folder"),
		OptionsJSON:    c.PostForm("options"),
	}
	if raw, ok := c.GetPostForm("auto_detect"); ok {
		in.AutoDetect = ParseBool(raw)
	}
	if raw := strings.TrimSpace(c.PostForm("folder_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "folder_id must be an integer", nil)
			return
		}
		in.FolderID = &id
	}

	job, err := h.Svc.Submit(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to submit job")
		return
	}
	c.Set(respond.KeyJobID, job.ID)
	respond.JSON(c, http.StatusCreated, ToView(job, h.Prefix, true))
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{Status: Status(strings.TrimSpace(c.Query("status")))}
	if v := c.Query("folder_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "folder_id must be an integer", nil)
			return
		}
		filter.FolderID = &id
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "failed to list jobs")
		return
	}
	resp := make([]JobView, 0, len(items))
	for _, job := range items {
		resp = append(resp, ToView(job, h.Prefix, false))
	}
	respond.OK(c, resp)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	job, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to fetch job")
		return
	}
	respond.OK(c, ToView(job, h.Prefix, true))
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	patch := Patch{Folder: req.Folder}
	if req.FolderID.Set {
		if req.FolderID.Value == nil {
			patch.ClearFolderID = true
		} else {
			patch.FolderID = req.FolderID.Value
		}
	}
	job, err := h.Svc.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err, "failed to update job")
		return
	}
	respond.OK(c, ToView(job, h.Prefix, true))
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete job")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rc, job, err := h.Svc.DownloadOutput(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to open job output")
		return
	}
	defer rc.Close()

	mimeType := ""
	if job.OutputMimeType != nil {
		mimeType = *job.OutputMimeType
	}
	respond.Attachment(c, *job.OutputFilename, mimeType, rc)
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
	case errors.Is(err, ErrOutputNotReady):
		respond.Error(c, http.StatusNotFound, "output_not_ready", "job output is not available", nil)
	case errors.Is(err, ErrOutputMissing):
		respond.Error(c, http.StatusNotFound, "output_missing", "job output file is missing", nil)
	case errors.Is(err, ErrInvalidEngine):
		respond.Error(c, http.StatusBadRequest, "invalid_engine", err.Error(), nil)
	case errors.Is(err, ErrInvalidOptions):
		respond.Error(c, http.StatusBadRequest, "invalid_options", err.Error(), nil)
	case errors.Is(err, ErrFolderNotFound):
		respond.Error(c, http.StatusBadRequest, "folder_not_found", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid job id", nil)
		return 0, false
	}
	c.Set(respond.KeyJobID, id)
	return id, true
}
