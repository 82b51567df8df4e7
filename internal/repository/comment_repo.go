package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/database"
	"github.com/comment-moderation-api/internal/models"
	"github.com/jmoiron/sqlx"
)

const commentColumns = `id, article_id, content, user_name, user_email, status, likes, created_at, updated_at`

// commentRepo is the concrete implementation of CommentRepository
type commentRepo struct {
	db *database.DB
}

// NewCommentRepo creates a new comment repository
func NewCommentRepo(db *database.DB) CommentRepository {
	return &commentRepo{db: db}
}

// GetByID retrieves a comment by ID
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	if !isUUID(id) {
		return nil, nil
	}
	var comment models.Comment
	err := r.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// List returns one page of an article's comments, newest first, plus the total
func (r *commentRepo) List(ctx context.Context, filter models.CommentFilter) ([]*models.Comment, int, error) {
	where := []string{"article_id = $1"}
	args := []interface{}{filter.ArticleID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM comments WHERE "+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM comments WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		commentColumns, clause, len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	comments := []*models.Comment{}
	if err := r.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return comments, total, nil
}

// Count returns the total number of comments
func (r *commentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM comments")
	return count, err
}

// CountByStatus returns the number of comments in each moderation state
func (r *commentRepo) CountByStatus(ctx context.Context) (map[models.CommentStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM comments GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count comments by status: %w", err)
	}
	defer rows.Close()

	counts := map[models.CommentStatus]int{
		models.CommentStatusPending:  0,
		models.CommentStatusApproved: 0,
		models.CommentStatusRejected: 0,
	}
	for rows.Next() {
		var status models.CommentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Like atomically increments the like counter; false means no such comment
func (r *commentRepo) Like(ctx context.Context, id string, at time.Time) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		"UPDATE comments SET likes = likes + 1, updated_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return false, fmt.Errorf("like comment: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// StreamAll streams all comments for export
func (r *commentRepo) StreamAll(ctx context.Context, callback func(*models.Comment) error) error {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+commentColumns+` FROM comments ORDER BY created_at`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var comment models.Comment
		if err := rows.StructScan(&comment); err != nil {
			return err
		}
		if err := callback(&comment); err != nil {
			return err
		}
	}

	return rows.Err()
}

// pgCommentTx implements CommentTx on an open sqlx transaction
type pgCommentTx struct {
	tx *sqlx.Tx
}

// GetForUpdate reads the comment and holds its row lock until commit
func (t *pgCommentTx) GetForUpdate(ctx context.Context, id string) (*models.Comment, error) {
	if !isUUID(id) {
		return nil, nil
	}
	var comment models.Comment
	err := t.tx.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock comment: %w", err)
	}
	return &comment, nil
}

// Insert adds a new comment
func (t *pgCommentTx) Insert(ctx context.Context, comment *models.Comment) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO comments (id, article_id, content, user_name, user_email, status, likes, created_at, updated_at)
		VALUES (:id, :article_id, :content, :user_name, :user_email, :status, :likes, :created_at, :updated_at)
	`, comment)
	if err != nil {
		if pgErrorCode(err) == pqForeignKeyViolation {
			return apperr.NotFound(fmt.Sprintf("article %s not found", comment.ArticleID))
		}
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// SetStatus updates status and updated_at without touching counters
func (t *pgCommentTx) SetStatus(ctx context.Context, id string, status models.CommentStatus, updatedAt time.Time) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE comments SET status = $1, updated_at = $2 WHERE id = $3", status, updatedAt, id)
	if err != nil {
		return fmt.Errorf("set comment status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return nil
}

// Delete removes the comment row
func (t *pgCommentTx) Delete(ctx context.Context, id string) error {
	result, err := t.tx.ExecContext(ctx, "DELETE FROM comments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound(fmt.Sprintf("comment %s not found", id))
	}
	return nil
}

// ArticleExists checks the parent article inside the transaction
func (t *pgCommentTx) ArticleExists(ctx context.Context, articleID string) (bool, error) {
	if !isUUID(articleID) {
		return false, nil
	}
	var exists bool
	err := t.tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1)", articleID)
	return exists, err
}

// AdjustCommentCount adds delta to the article's comment_count
func (t *pgCommentTx) AdjustCommentCount(ctx context.Context, articleID string, delta int) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE articles SET comment_count = comment_count + $1, updated_at = NOW() WHERE id = $2", delta, articleID)
	if err != nil {
		return fmt.Errorf("adjust comment_count: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	return nil
}

// GetCommentCountForUpdate reads comment_count and locks the article row
func (t *pgCommentTx) GetCommentCountForUpdate(ctx context.Context, articleID string) (int, error) {
	if !isUUID(articleID) {
		return 0, apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	var count int
	err := t.tx.GetContext(ctx, &count, "SELECT comment_count FROM articles WHERE id = $1 FOR UPDATE", articleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	if err != nil {
		return 0, fmt.Errorf("lock article: %w", err)
	}
	return count, nil
}

// SetCommentCount overwrites comment_count
func (t *pgCommentTx) SetCommentCount(ctx context.Context, articleID string, count int) error {
	result, err := t.tx.ExecContext(ctx,
		"UPDATE articles SET comment_count = $1, updated_at = NOW() WHERE id = $2", count, articleID)
	if err != nil {
		return fmt.Errorf("set comment_count: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperr.NotFound(fmt.Sprintf("article %s not found", articleID))
	}
	return nil
}

// CountApproved counts the article's approved comments
func (t *pgCommentTx) CountApproved(ctx context.Context, articleID string) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM comments WHERE article_id = $1 AND status = $2", articleID, models.CommentStatusApproved)
	return count, err
}
