package service

import (
	"context"
	"fmt"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	*core
	log zerolog.Logger
}

// newArticleService creates a new ArticleService
func newArticleService(c *core, log zerolog.Logger) *articleService {
	return &articleService{
		core: c,
		log:  log.With().Str("service", "article").Logger(),
	}
}

// Create stores a new article with a zero comment counter
func (s *articleService) Create(ctx context.Context, req *models.CreateArticleRequest) (*models.Article, error) {
	if err := validation.ToError(validation.ValidateCreateArticle(req)); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = "draft"
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	now := s.now()
	article := &models.Article{
		ID:        uuid.New().String(),
		Slug:      req.Slug,
		Title:     req.Title,
		Body:      req.Body,
		AuthorID:  req.AuthorID,
		Tags:      tags,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.PublishedAt != "" {
		// Already validated as RFC 3339
		publishedAt, _ := time.Parse(time.RFC3339, req.PublishedAt)
		publishedAt = publishedAt.UTC()
		article.PublishedAt = &publishedAt
	}

	if err := s.repos.Article.Create(ctx, article); err != nil {
		return nil, err
	}

	s.log.Info().Str("article_id", article.ID).Str("slug", article.Slug).Msg("Article created")
	return article, nil
}

// Get returns an article by ID
func (s *articleService) Get(ctx context.Context, id string) (*models.Article, error) {
	article, err := s.repos.Article.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if article == nil {
		return nil, apperr.NotFound(fmt.Sprintf("article %s not found", id))
	}
	return article, nil
}
