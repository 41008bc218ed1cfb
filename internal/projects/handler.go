package projects

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// RegisterRoutes mounts browsing on public, farmer actions on authed and
// release review on admin. The address-keyed release keeps its unprefixed path.
func (h *Handler) RegisterRoutes(public, authed, admin *gin.RouterGroup) {
	browse := public.Group("/projects")
	{
		browse.GET("", h.List)
		browse.GET("/:id", h.Get)
		browse.GET("/:id/activity", h.Activity)
	}

	projects := authed.Group("/projects")
	{
		projects.POST("", h.Create)
		projects.POST("/:id/repayments", h.Repay)
		projects.POST("/:id/milestones/:index/proof", h.SubmitProof)
	}

	review := admin.Group("/projects/:id")
	{
		review.POST("/milestones/:index/release", h.Release)
		review.POST("/milestones/:index/reject", h.Reject)
		review.POST("/cancel", h.Cancel)
	}
	authed.POST("/milestones/release", middleware.RequireAdmin(), h.ReleaseByAddress)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project payload"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	project, err := h.service.Create(c.Request.Context(), p.UserID, req)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func (h *Handler) List(c *gin.Context) {
	var f Filter
	if s := c.Query("status"); s != "" {
		status := Status(s)
		f.Status = &status
	}
	if s := c.Query("crop_type"); s != "" {
		crop := CropType(s)
		f.CropType = &crop
	}
	if s := c.Query("farmer_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid farmer_id"})
			return
		}
		f.FarmerID = &id
	}
	f.Search = c.Query("search")
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) Get(c *gin.Context) {
	project, err := h.service.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (h *Handler) Activity(c *gin.Context) {
	project, err := h.service.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.service.Activity(c.Request.Context(), project.ID, limit)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

type repaymentBody struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) Repay(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var body repaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.RecordRepayment(c.Request.Context(), p.UserID, id, body.Amount)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) SubmitProof(c *gin.Context) {
	id, index, ok := milestoneParams(c)
	if !ok {
		return
	}
	var req SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof_cid and signature are required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	project, err := h.service.SubmitProof(c.Request.Context(), p.UserID, id, index, req)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (h *Handler) Release(c *gin.Context) {
	id, index, ok := milestoneParams(c)
	if !ok {
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.ReleaseMilestone(c.Request.Context(), p.UserID, id, index)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type releaseByAddressBody struct {
	ProjectAddress string `json:"project_address" binding:"required"`
	MilestoneIndex *int   `json:"milestone_index" binding:"required"`
}

// ReleaseByAddress addresses the milestone by contract address instead of id
func (h *Handler) ReleaseByAddress(c *gin.Context) {
	var body releaseByAddressBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_address and milestone_index are required"})
		return
	}
	project, err := h.service.Resolve(c.Request.Context(), body.ProjectAddress)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	result, err := h.service.ReleaseMilestone(c.Request.Context(), p.UserID, project.ID, *body.MilestoneIndex)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type noteBody struct {
	Note string `json:"note"`
}

func (h *Handler) Reject(c *gin.Context) {
	id, index, ok := milestoneParams(c)
	if !ok {
		return
	}
	var body noteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "note is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	project, err := h.service.RejectProof(c.Request.Context(), p.UserID, id, index, body.Note)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

type cancelBody struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := projectID(c)
	if !ok {
		return
	}
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	p, _ := middleware.PrincipalFrom(c)
	project, err := h.service.Cancel(c.Request.Context(), p.UserID, id, body.Reason)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func projectID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project ID"})
		return uuid.Nil, false
	}
	return id, true
}

func milestoneParams(c *gin.Context) (uuid.UUID, int, bool) {
	id, ok := projectID(c)
	if !ok {
		return uuid.Nil, 0, false
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milestone index"})
		return uuid.Nil, 0, false
	}
	return id, index, true
}
