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

// ArticleHandler handles article endpoints
type ArticleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// Create handles POST /v1/articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req models.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apperr.InvalidInput("invalid request body"))
		return
	}

	article, err := h.services.Article.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, article)
}

// Get handles GET /v1/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	article, err := h.services.Article.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, article)
}

// ListComments handles GET /v1/articles/:id/comments?status=&page=&page_size=
func (h *ArticleHandler) ListComments(c *gin.Context) {
	var status models.CommentStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := validation.ParseCommentStatus(raw)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		status = parsed
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", models.DefaultPageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	result, err := h.services.Comment.ListByArticle(c.Request.Context(), c.Param("id"), status, page, pageSize)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Recount handles POST /v1/articles/:id/recount
func (h *ArticleHandler) Recount(c *gin.Context) {
	result, err := h.services.Moderation.Recount(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
