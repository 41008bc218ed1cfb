package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
	"farmlink/platform/platform-backend/internal/users"
)

type Handler struct {
	aggregator *Aggregator
	logger     *zap.Logger
}

func NewHandler(aggregator *Aggregator, logger *zap.Logger) *Handler {
	return &Handler{aggregator: aggregator, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	d := rg.Group("/dashboard")
	{
		d.GET("/farmer", h.Farmer)
		d.GET("/investor", h.Investor)
	}
}

func (h *Handler) Farmer(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	if p.Role != string(users.RoleFarmer) {
		c.JSON(http.StatusForbidden, gin.H{"error": "farmer role required"})
		return
	}
	dash, err := h.aggregator.Farmer(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) Investor(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	if p.Role != string(users.RoleInvestor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "investor role required"})
		return
	}
	dash, err := h.aggregator.Investor(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
