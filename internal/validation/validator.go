package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/models"
	"github.com/google/uuid"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	slugRegex  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ToError folds field errors into one INVALID_INPUT error, or nil
func ToError(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return apperr.InvalidInput(strings.Join(parts, "; "))
}

// ValidateCreateArticle validates an article payload
func ValidateCreateArticle(req *models.CreateArticleRequest) []ValidationError {
	var errors []ValidationError

	// Validate slug
	if req.Slug == "" {
		errors = append(errors, ValidationError{Field: "slug", Message: "slug is required"})
	} else if !slugRegex.MatchString(req.Slug) {
		errors = append(errors, ValidationError{Field: "slug", Message: "slug must be kebab-case (lowercase letters, numbers, hyphens)", Value: req.Slug})
	}

	if strings.TrimSpace(req.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	}
	if strings.TrimSpace(req.Body) == "" {
		errors = append(errors, ValidationError{Field: "body", Message: "body is required"})
	}

	if req.AuthorID == "" {
		errors = append(errors, ValidationError{Field: "author_id", Message: "author_id is required"})
	} else if !IsValidUUID(req.AuthorID) {
		errors = append(errors, ValidationError{Field: "author_id", Message: "invalid UUID format", Value: req.AuthorID})
	}

	if req.Status != "" && !models.ValidStatuses[req.Status] {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "invalid status, must be one of: draft, published",
			Value:   req.Status,
		})
	}

	// Drafts are unpublished by definition
	if req.Status == "draft" && req.PublishedAt != "" {
		errors = append(errors, ValidationError{Field: "published_at", Message: "draft articles must not have published_at"})
	}
	if req.PublishedAt != "" {
		if _, err := time.Parse(time.RFC3339, req.PublishedAt); err != nil {
			errors = append(errors, ValidationError{Field: "published_at", Message: "invalid ISO 8601 date format", Value: req.PublishedAt})
		}
	}

	return errors
}

// ValidateCreateComment validates a comment payload. Only PENDING and APPROVED
// are accepted as initial states.
func ValidateCreateComment(req *models.CreateCommentRequest) []ValidationError {
	var errors []ValidationError

	if req.ArticleID == "" {
		errors = append(errors, ValidationError{Field: "article_id", Message: "article_id is required"})
	} else if !IsValidUUID(req.ArticleID) {
		errors = append(errors, ValidationError{Field: "article_id", Message: "invalid UUID format", Value: req.ArticleID})
	}

	if strings.TrimSpace(req.Content) == "" {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	} else {
		wordCount := len(strings.Fields(req.Content))
		if wordCount > models.MaxCommentWords {
			errors = append(errors, ValidationError{
				Field:   "content",
				Message: fmt.Sprintf("content exceeds maximum of %d words (has %d)", models.MaxCommentWords, wordCount),
			})
		}
	}

	if strings.TrimSpace(req.UserName) == "" {
		errors = append(errors, ValidationError{Field: "user_name", Message: "user_name is required"})
	}

	if req.UserEmail != "" && !emailRegex.MatchString(req.UserEmail) {
		errors = append(errors, ValidationError{Field: "user_email", Message: "invalid email format", Value: req.UserEmail})
	}

	switch req.Status {
	case "", models.CommentStatusPending, models.CommentStatusApproved:
	default:
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: "initial status must be PENDING or APPROVED",
			Value:   req.Status,
		})
	}

	return errors
}

// ParseCommentStatus accepts a status name in any case
func ParseCommentStatus(s string) (models.CommentStatus, error) {
	status := models.CommentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !models.ValidCommentStatuses[status] {
		return "", apperr.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: PENDING, APPROVED, REJECTED", s))
	}
	return status, nil
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
