package documents

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/api/middleware"
	"github.com/liliang-cn/fixdoc/internal/api/respond"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/service"
)

// Handler handles manual upload and device catalog requests
type Handler struct {
	ingest  *service.IngestService
	catalog *service.CatalogService
}

// NewHandler creates a new documents handler
func NewHandler(ingest *service.IngestService, catalog *service.CatalogService) *Handler {
	return &Handler{ingest: ingest, catalog: catalog}
}

// RegisterRoutes registers document and device routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	documents := r.Group("/documents")
	{
		documents.POST("", h.Upload)
		documents.GET("", h.List)
		documents.GET("/:id", h.Get)
		documents.DELETE("/:id", h.Delete)
		documents.POST("/:id/reprocess", h.Reprocess)
	}

	devices := r.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.GET("/:device_type", h.GetDevice)
	}
}

// SideEffectResult reports the outcome of a best-effort cleanup step
type SideEffectResult struct {
	Operation string `json:"operation"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Upload stores a manual and processes it before responding
func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, domain.Errorf(domain.ErrValidation, "file is required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		respond.Error(c, domain.Errorf(domain.ErrValidation, "read upload: %w", err))
		return
	}
	defer src.Close()

	doc, err := h.ingest.Upload(c.Request.Context(), middleware.AccountID(c), domain.UploadRequest{
		Filename:   file.Filename,
		DeviceType: c.PostForm("device_type"),
		Brand:      c.PostForm("brand"),
		Model:      c.PostForm("model"),
		Size:       file.Size,
	}, src)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// List returns the caller's documents
func (h *Handler) List(c *gin.Context) {
	filter := domain.DocumentFilter{
		DeviceType: c.Query("device_type"),
		Brand:      c.Query("brand"),
	}

	if v := c.Query("status"); v != "" {
		status, err := domain.ParseDocumentStatus(v)
		if err != nil {
			respond.Error(c, err)
			return
		}
		filter.Status = &status
	}

	var err error
	if filter.Skip, err = queryInt(c, "skip", 0); err != nil {
		respond.Error(c, err)
		return
	}
	if filter.Limit, err = queryInt(c, "limit", 0); err != nil {
		respond.Error(c, err)
		return
	}

	docs, err := h.ingest.List(c.Request.Context(), middleware.AccountID(c), filter)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

func (h *Handler) Get(c *gin.Context) {
	doc, err := h.ingest.Get(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Reprocess(c *gin.Context) {
	doc, err := h.ingest.Reprocess(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete removes the document record; file and index cleanup are reported, not enforced
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	effects, err := h.ingest.Delete(c.Request.Context(), middleware.AccountID(c), id)
	if err != nil {
		respond.Error(c, err)
		return
	}

	results := make([]SideEffectResult, len(effects))
	for i, e := range effects {
		results[i] = SideEffectResult{Operation: e.Operation, OK: e.OK()}
		if e.Err != nil {
			results[i].Error = e.Err.Error()
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "document deleted",
		"document_id":  id,
		"side_effects": results,
	})
}

// Device catalog handlers

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.catalog.List(c.Request.Context())
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handler) GetDevice(c *gin.Context) {
	device, err := h.catalog.Get(c.Request.Context(), c.Param("device_type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Errorf(domain.ErrValidation, "%s must be a non-negative integer", name)
	}
	return n, nil
}
