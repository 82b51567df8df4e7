package service

import (
	"context"

	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/rs/zerolog"
)

// Bounds for the top-commented ranking
const (
	DefaultTopArticles = 5
	MaxTopArticles     = 50
)

type statsService struct {
	repos *repository.Repositories
	log   zerolog.Logger
}

func newStatsService(repos *repository.Repositories, log zerolog.Logger) *statsService {
	return &statsService{
		repos: repos,
		log:   log.With().Str("service", "stats").Logger(),
	}
}

// Get sums the dashboard figures. Each figure is read separately, so the
// summary is not a single snapshot.
func (s *statsService) Get(ctx context.Context, topN int) (*models.Stats, error) {
	if topN < 1 {
		topN = DefaultTopArticles
	}
	if topN > MaxTopArticles {
		topN = MaxTopArticles
	}

	articles, err := s.repos.Article.Count(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.repos.Comment.Count(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repos.Comment.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.repos.Article.TopByCommentCount(ctx, topN)
	if err != nil {
		return nil, err
	}

	return &models.Stats{
		Articles:         articles,
		Comments:         comments,
		CommentsByStatus: byStatus,
		TopArticles:      top,
	}, nil
}
