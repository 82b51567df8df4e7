package service

import (
	"context"
	"fmt"
	"math"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/comment-moderation-api/internal/repository"
	"github.com/comment-moderation-api/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// commentService is the concrete implementation of CommentService
type commentService struct {
	*core
	log zerolog.Logger
}

// newCommentService creates a new CommentService
func newCommentService(c *core, log zerolog.Logger) *commentService {
	return &commentService{
		core: c,
		log:  log.With().Str("service", "comment").Logger(),
	}
}

// Create stores a new comment. A comment created APPROVED is counted in the
// same transaction as the insert.
func (s *commentService) Create(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error) {
	if err := validation.ToError(validation.ValidateCreateComment(req)); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.CommentStatusPending
	}
	now := s.now()
	comment := &models.Comment{
		ID:        uuid.New().String(),
		ArticleID: req.ArticleID,
		Content:   req.Content,
		UserName:  req.UserName,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.UserEmail != "" {
		email := req.UserEmail
		comment.UserEmail = &email
	}

	ctx, finish := s.startOp(ctx, models.ActionCreate,
		attribute.String("comment.id", comment.ID),
		attribute.String("article.id", comment.ArticleID),
	)
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, tx repository.CommentTx) error {
		exists, err := tx.ArticleExists(ctx, comment.ArticleID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.NotFound(fmt.Sprintf("article %s not found", comment.ArticleID))
		}
		if err := tx.Insert(ctx, comment); err != nil {
			return err
		}
		if status.Counted() {
			return tx.AdjustCommentCount(ctx, comment.ArticleID, 1)
		}
		return nil
	})
	finish(err == nil, err)
	if err != nil {
		return nil, err
	}

	delta := models.CounterDelta("", status)
	s.log.Info().
		Str("comment_id", comment.ID).
		Str("article_id", comment.ArticleID).
		Str("status", string(status)).
		Int("delta", delta).
		Msg("Comment created")

	s.publish(ctx, s.log, models.ModerationEvent{
		CommentID: comment.ID,
		ArticleID: comment.ArticleID,
		Action:    models.ActionCreate,
		To:        status,
		Delta:     delta,
		At:        now,
	})
	return comment, nil
}

// Get returns a comment by ID
func (s *commentService) Get(ctx context.Context, id string) (*models.Comment, error) {
	comment, err := s.repos.Comment.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return comment, nil
}

// ListByArticle returns one page of an article's comments, newest first
func (s *commentService) ListByArticle(ctx context.Context, articleID string, status models.CommentStatus, page, pageSize int) (*models.CommentPage, error) {
	if status != "" && !models.ValidCommentStatuses[status] {
		return nil, apperr.InvalidInput(fmt.Sprintf("invalid status %q", status))
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = models.DefaultPageSize
	}
	if pageSize > models.MaxPageSize {
		pageSize = models.MaxPageSize
	}
	// (page-1)*pageSize must fit in an int offset
	if page > math.MaxInt/pageSize {
		return nil, apperr.InvalidInput(fmt.Sprintf("page %d is out of range", page))
	}

	exists, err := s.repos.Article.Exists(ctx, articleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}

	comments, total, err := s.repos.Comment.List(ctx, models.CommentFilter{
		ArticleID: articleID,
		Status:    status,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}

	return &models.CommentPage{
		Comments: comments,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Like increments the like counter; it has no effect on comment_count
func (s *commentService) Like(ctx context.Context, id string) (*models.Comment, error) {
	found, err := s.repos.Comment.Like(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return s.Get(ctx, id)
}
