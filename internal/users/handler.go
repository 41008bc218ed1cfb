package users

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"farmlink/platform/platform-backend/internal/apperr"
	"farmlink/platform/platform-backend/internal/middleware"
)

// SessionIssuer re-issues a session token after a profile change that affects claims
type SessionIssuer interface {
	IssueFor(u *User) (string, error)
}

type Handler struct {
	service Service
	issuer  SessionIssuer
	logger  *zap.Logger
}

func NewHandler(service Service, issuer SessionIssuer, logger *zap.Logger) *Handler {
	return &Handler{service: service, issuer: issuer, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	me := rg.Group("/users/me")
	{
		me.GET("", h.GetMe)
		me.PUT("", h.UpdateProfile)
		me.POST("/role", h.SelectRole)
	}
}

type updateProfileBody struct {
	Email string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) GetMe(c *gin.Context) {
	p, _ := middleware.PrincipalFrom(c)
	u, err := h.service.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "is_admin": p.Admin})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	u, err := h.service.UpdateProfile(c.Request.Context(), p.UserID, UpdateProfileRequest{Email: body.Email})
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *Handler) SelectRole(c *gin.Context) {
	var req SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	u, err := h.service.SelectRole(c.Request.Context(), p.UserID, req.Role)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	token, err := h.issuer.IssueFor(u)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "token": token})
}
