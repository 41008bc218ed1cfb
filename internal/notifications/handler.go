package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
	"farmlink/platform/platform-backend/internal/notifications/websocket"
)

type Handler struct {
	service Service
	ws      *websocket.Manager
	logger  *zap.Logger
}

func NewHandler(service Service, ws *websocket.Manager, logger *zap.Logger) *Handler {
	return &Handler{service: service, ws: ws, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.POST("/notifications/:id/read", h.MarkRead)
	rg.GET("/ws", h.Connect)
}

func (h *Handler) List(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	unreadOnly := c.Query("unread") == "true"

	resp, err := h.service.List(c.Request.Context(), p.UserID, unreadOnly, limit, offset)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	if err := h.service.MarkRead(c.Request.Context(), p.UserID, id); err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Connect(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	if _, err := h.ws.HandleConnection(c.Writer, c.Request, p.UserID.String()); err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
	}
}
