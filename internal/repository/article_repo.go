package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/models"
)

const articleColumns = `id, slug, title, body, author_id, tags, status, comment_count, published_at, created_at, updated_at`

// articleRepo is the concrete implementation of ArticleRepository
type articleRepo struct {
	db *database.DB
}

// NewArticleRepo creates a new article repository
func NewArticleRepo(db *database.DB) ArticleRepository {
	return &articleRepo{db: db}
}

// Create inserts a new article
func (r *articleRepo) Create(ctx context.Context, article *models.Article) error {
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	article.TagsJSON = tagsJSON

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO articles (id, slug, title, body, author_id, tags, status, comment_count, published_at, created_at, updated_at)
		VALUES (:id, :slug, :title, :body, :author_id, :tags, :status, :comment_count, :published_at, :created_at, :updated_at)
	`, article)
	if err != nil {
		if pgErrorCode(err) == pqUniqueViolation {
			return apperr.InvalidInput(fmt.Sprintf("slug %q already exists", article.Slug))
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// GetByID retrieves an article by ID
func (r *articleRepo) GetByID(ctx context.Context, id string) (*models.Article, error) {
	if !isUUID(id) {
		return nil, nil
	}
	var article models.Article
	err := r.db.GetContext(ctx, &article, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	if err := decodeTags(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

// Exists checks if an article with the given ID exists
func (r *articleRepo) Exists(ctx context.Context, id string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)", id)
	return exists, err
}

// Count returns the total number of articles
func (r *articleRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM articles")
	return count, err
}

// TopByCommentCount ranks articles by approved comment count
func (r *articleRepo) TopByCommentCount(ctx context.Context, limit int) ([]models.ArticleCommentCount, error) {
	top := []models.ArticleCommentCount{}
	err := r.db.SelectContext(ctx, &top, `
		SELECT id, slug, title, comment_count FROM articles
		ORDER BY comment_count DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("rank articles: %w", err)
	}
	return top, nil
}

// StreamAll streams all articles for export
func (r *articleRepo) StreamAll(ctx context.Context, callback func(*models.Article) error) error {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var article models.Article
		if err := rows.StructScan(&article); err != nil {
			return err
		}
		if err := decodeTags(&article); err != nil {
			return err
		}

		if err := callback(&article); err != nil {
			return err
		}
	}

	return rows.Err()
}

func decodeTags(article *models.Article) error {
	article.Tags = []string{}
	if len(article.TagsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(article.TagsJSON, &article.Tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	if article.Tags == nil {
		article.Tags = []string{}
	}
	return nil
}
