package api

import (
	"net/http"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/service"
	"github.com/comment-moderation-api/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CommentHandler handles comment and moderation endpoints
type CommentHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(services *service.Services, log zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		services: services,
		log:      log.With().Str("handler", "comment").Logger(),
	}
}

// Create handles POST /v1/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.InvalidInput("invalid request body"))
		return
	}
	if req.Status != "" {
		status, err := validation.ParseCommentStatus(string(req.Status))
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		req.Status = status
	}

	comment, err := h.services.Comment.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// Get handles GET /v1/comments/:id
func (h *CommentHandler) Get(c *gin.Context) {
	comment, err := h.services.Comment.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Approve handles POST /v1/comments/:id/approve
func (h *CommentHandler) Approve(c *gin.Context) {
	result, err := h.services.Moderation.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reject handles POST /v1/comments/:id/reject
func (h *CommentHandler) Reject(c *gin.Context) {
	result, err := h.services.Moderation.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetStatus handles PATCH /v1/comments/:id/status
func (h *CommentHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.InvalidInput("invalid request body"))
		return
	}

	// An empty status is passed through so the service can reject the transition
	var status models.CommentStatus
	if req.Status != "" {
		parsed, err := validation.ParseCommentStatus(req.Status)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		status = parsed
	}

	result, err := h.services.Moderation.SetStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Like handles POST /v1/comments/:id/like
func (h *CommentHandler) Like(c *gin.Context) {
	comment, err := h.services.Comment.Like(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

// Delete handles DELETE /v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	result, err := h.services.Moderation.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
