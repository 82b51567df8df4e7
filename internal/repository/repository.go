package repository

import (
	"context"
	"time"

	"github.com/comment-moderation-api/internal/config"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/models"
	"github.com/rs/zerolog"
)

// ArticleRepository defines the interface for article data operations
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
	TopByCommentCount(ctx context.Context, limit int) ([]models.ArticleCommentCount, error)
	StreamAll(ctx context.Context, callback func(*models.Article) error) error
}

// CommentRepository defines the non-transactional comment operations.
// Status changes and anything touching comment_count go through Transactor.
type CommentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	List(ctx context.Context, filter models.CommentFilter) ([]*models.Comment, int, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[models.CommentStatus]int, error)
	Like(ctx context.Context, id string, at time.Time) (bool, error)
	StreamAll(ctx context.Context, callback func(*models.Comment) error) error
}

// CommentTx is the set of reads and writes available inside a moderation
// transaction. Reads that return (nil, nil) mean the record does not exist;
// writes against a missing record return an apperr NOT_FOUND error.
type CommentTx interface {
	// GetForUpdate reads a comment and, where the backend supports it, locks it
	// until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Comment, error)
	Insert(ctx context.Context, comment *models.Comment) error
	// SetStatus writes status and updated_at only; it never touches counters.
	SetStatus(ctx context.Context, id string, status models.CommentStatus, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error

	ArticleExists(ctx context.Context, articleID string) (bool, error)
	AdjustCommentCount(ctx context.Context, articleID string, delta int) error
	GetCommentCountForUpdate(ctx context.Context, articleID string) (int, error)
	SetCommentCount(ctx context.Context, articleID string, count int) error
	CountApproved(ctx context.Context, articleID string) (int, error)
}

// Transactor runs fn atomically. fn may be invoked more than once when the
// backend retries on conflict, so it must not have side effects outside tx.
// When retries are exhausted the error carries the apperr CONFLICT code.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx CommentTx) error) error
}

// Repositories holds all repository interfaces
type Repositories struct {
	Backend string
	Article ArticleRepository
	Comment CommentRepository
	Tx      Transactor
}

// NewPostgres creates all repositories backed by PostgreSQL
func NewPostgres(db *database.DB, cfg config.ModerationConfig, m *metrics.Metrics, log zerolog.Logger) *Repositories {
	return &Repositories{
		Backend: config.DriverPostgres,
		Article: NewArticleRepo(db),
		Comment: NewCommentRepo(db),
		Tx:      NewPgTransactor(db, cfg, m, log),
	}
}

// NewMongo creates all repositories backed by MongoDB
func NewMongo(db *database.Mongo, cfg config.ModerationConfig, m *metrics.Metrics, log zerolog.Logger) *Repositories {
	return &Repositories{
		Backend: config.DriverMongo,
		Article: NewMongoArticleRepo(db),
		Comment: NewMongoCommentRepo(db),
		Tx:      NewMongoTransactor(db, cfg, m, log),
	}
}
