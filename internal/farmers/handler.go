package farmers

import (
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts applicant routes on authed and review routes on admin
func (h *Handler) RegisterRoutes(authed, admin *gin.RouterGroup) {
	apps := authed.Group("/farmers/applications")
	{
		apps.POST("", h.Submit)
		apps.GET("/me", h.GetMine)
	}

	review := admin.Group("/farmers/applications")
	{
		review.GET("", h.List)
		review.POST("/:id/review", h.Review)
		review.GET("/:id/documents", h.Documents)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}

	files := form.File["documents"]
	docs := make([]DocumentUpload, 0, len(files))
	opened := make([]multipart.File, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable document"})
			return
		}
		opened = append(opened, f)
		docs = append(docs, DocumentUpload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	p, _ := middleware.PrincipalFrom(c)
	app, err := h.service.Submit(c.Request.Context(), p.UserID, SubmitRequest{
		Name:         c.PostForm("name"),
		Bio:          c.PostForm("bio"),
		FarmLocation: c.PostForm("farm_location"),
		Documents:    docs,
	})
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *Handler) GetMine(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	app, err := h.service.GetMine(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) List(c *gin.Context) {
	var status *ApplicationStatus
	if s := c.Query("status"); s != "" {
		st := ApplicationStatus(s)
		status = &st
	}
	apps, err := h.service.List(c.Request.Context(), status)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *Handler) Review(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.Review(c.Request.Context(), p.UserID, id, req)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Documents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	links, err := h.service.DocumentLinks(c.Request.Context(), id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": links})
}
