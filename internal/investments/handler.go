package investments

import (
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/projects/:id/investments", h.Invest)
	rg.GET("/projects/:id/investments", h.ListForProject)

	inv := rg.Group("/investments")
	{
		inv.GET("", h.ListMine)
		inv.GET("/statement", h.Statement)
		inv.POST("/claim-all", h.ClaimAll)
		inv.POST("/:id/claim", h.Claim)
	}
}

func (h *Handler) Invest(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.Invest(c.Request.Context(), p.UserID, projectID, req.Amount)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) ListForProject(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	list, err := h.service.ListForProject(c.Request.Context(), p.UserID, p.Admin, projectID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": list})
}

func (h *Handler) ListMine(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	list, err := h.service.ListMine(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": list})
}

func (h *Handler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid investment ID"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.Claim(c.Request.Context(), p.UserID, id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ClaimAll(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.ClaimAll(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Statement(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	format := StatementFormat(c.DefaultQuery("format", string(FormatCSV)))
	st, err := h.service.Statement(c.Request.Context(), p.UserID, format)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+st.Filename+`"`)
	c.Data(http.StatusOK, st.ContentType, st.Body)
}
