package folders

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
	"docflow-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the folder service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches folder routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/folders", h.list)
	rg.POST("/folders", h.create)
	rg.GET("/folders/:id", h.get)
	rg.PATCH("/folders/:id", h.update)
	rg.DELETE("/folders/:id", h.delete)
	rg.GET("/folders/:id/download", h.download)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list folders")
		return
	}
	resp := make([]FolderView, 0, len(items))
	for _, f := range items {
		view, err := h.view(c, f)
		if err != nil {
			h.fail(c, err, "failed to list folders")
			return
		}
		resp = append(resp, view)
	}
	respond.OK(c, resp)
}

func (h *Handler) create(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	f, err := h.Svc.Create(c.Request.Context(), Draft{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		ParentID:    req.ParentID,
	})
	if err != nil {
		h.fail(c, err, "failed to create folder")
		return
	}
	c.Set(respond.KeyFolderID, f.ID)
	respond.JSON(c, http.StatusCreated, ToView(f, 0))
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to fetch folder")
		return
	}
	view, err := h.view(c, f)
	if err != nil {
		h.fail(c, err, "failed to fetch folder")
		return
	}
	respond.OK(c, view)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	f, err := h.Svc.Update(c.Request.Context(), id, Patch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		ParentID:    req.ParentID,
	})
	if err != nil {
		h.fail(c, err, "failed to update folder")
		return
	}
	view, err := h.view(c, f)
	if err != nil {
		h.fail(c, err, "failed to update folder")
		return
	}
	respond.OK(c, view)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, "failed to delete folder")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	f, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to fetch folder")
		return
	}
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ArchiveName(f)}))
	c.Status(http.StatusOK)
	if _, err := h.Svc.Export(c.Request.Context(), f, c.Writer); err != nil {
		// Headers are already sent; the client sees a truncated archive.
		telemetry.Error("folder.export_failed", map[string]any{"folder_id": id, "error": err.Error()})
		_ = c.Error(err)
		c.Abort()
	}
}

func (h *Handler) view(c *gin.Context, f Folder) (FolderView, error) {
	count, err := h.Svc.DocumentCount(c.Request.Context(), f.ID)
	if err != nil {
		return FolderView{}, err
	}
	return ToView(f, count), nil
}

func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "folder not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid folder id", nil)
		return 0, false
	}
	c.Set(respond.KeyFolderID, id)
	return id, true
}
