package service

import (
	"context"
	"net/http"
	"time"

	"github.com/comment-moderation-api/internal/events"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/comment-moderation-api/internal/telemetry"
	"github.com/rs/zerolog"
)

// ModerationService moves comments between moderation states and keeps each
// article's comment_count equal to its number of APPROVED comments.
type ModerationService interface {
	Approve(ctx context.Context, id string) (*models.ModerationResult, error)
	Reject(ctx context.Context, id string) (*models.ModerationResult, error)
	SetStatus(ctx context.Context, id string, status models.CommentStatus) (*models.ModerationResult, error)
	Delete(ctx context.Context, id string) (*models.ModerationResult, error)
	Recount(ctx context.Context, articleID string) (*models.RecountResult, error)
}

// CommentService defines comment administration outside of moderation
type CommentService interface {
	Create(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error)
	Get(ctx context.Context, id string) (*models.Comment, error)
	ListByArticle(ctx context.Context, articleID string, status models.CommentStatus, page, pageSize int) (*models.CommentPage, error)
	Like(ctx context.Context, id string) (*models.Comment, error)
}

// ArticleService defines article operations
type ArticleService interface {
	Create(ctx context.Context, req *models.CreateArticleRequest) (*models.Article, error)
	Get(ctx context.Context, id string) (*models.Article, error)
}

// StatsService builds the dashboard summary
type StatsService interface {
	Get(ctx context.Context, topN int) (*models.Stats, error)
}

// ExportService defines the interface for export operations
type ExportService interface {
	StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error
	StreamComments(ctx context.Context, w http.ResponseWriter, format string) error
	GetCount(ctx context.Context, resource string) (int, error)
}

// Services holds all service interfaces
type Services struct {
	Moderation ModerationService
	Comment    CommentService
	Article    ArticleService
	Stats      StatsService
	Export     ExportService
}

// Deps are the collaborators shared by the services
type Deps struct {
	Repos     *repository.Repositories
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// NewServices creates all services
func NewServices(deps Deps, log zerolog.Logger) *Services {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	core := &core{
		repos:     deps.Repos,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		tracer:    telemetry.Tracer(),
		now:       deps.Now,
	}

	return &Services{
		Moderation: newModerationService(core, log),
		Comment:    newCommentService(core, log),
		Article:    newArticleService(core, log),
		Stats:      newStatsService(deps.Repos, log),
		Export:     newExportService(deps.Repos, log),
	}
}
