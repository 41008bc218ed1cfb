package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
)

type Handler struct {
	service *Service
	tokens  *middleware.TokenManager
	logger  *zap.Logger
}

func NewHandler(s *Service, tokens *middleware.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{service: s, tokens: tokens, logger: logger}
}

// RegisterRoutes registers auth routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/challenge", h.Challenge)
		authGroup.POST("/verify", h.Verify)
		authGroup.POST("/refresh", middleware.RequireAuth(h.tokens), h.Refresh)
	}
}

type challengeRequest struct {
	Address string `json:"address" binding:"required"`
}

type verifyRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (h *Handler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	challenge, err := h.service.Challenge(c.Request.Context(), req.Address)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and signature are required"})
		return
	}
	session, err := h.service.Verify(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *Handler) Refresh(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	session, err := h.service.Refresh(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
