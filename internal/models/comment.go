package models

import (
	"time"
)

// CommentStatus is the moderation state of a comment
type CommentStatus string

const (
	CommentStatusPending  CommentStatus = "PENDING"
	CommentStatusApproved CommentStatus = "APPROVED"
	CommentStatusRejected CommentStatus = "REJECTED"
)

// ValidCommentStatuses defines the live moderation states
var ValidCommentStatuses = map[CommentStatus]bool{
	CommentStatusPending:  true,
	CommentStatusApproved: true,
	CommentStatusRejected: true,
}

// Counted reports whether a comment in this status contributes to the
// parent article's comment_count.
func (s CommentStatus) Counted() bool {
	return s == CommentStatusApproved
}

// CounterDelta returns the change to comment_count caused by moving a
// comment from one status to another: -1, 0 or +1.
func CounterDelta(from, to CommentStatus) int {
	delta := 0
	if to.Counted() {
		delta++
	}
	if from.Counted() {
		delta--
	}
	return delta
}

// Comment represents a reader comment on an article
type Comment struct {
	ID        string        `json:"id" db:"id" bson:"_id"`
	ArticleID string        `json:"article_id" db:"article_id" bson:"articleId"`
	Content   string        `json:"content" db:"content" bson:"content"`
	UserName  string        `json:"user_name" db:"user_name" bson:"userName"`
	UserEmail *string       `json:"user_email,omitempty" db:"user_email" bson:"userEmail,omitempty"`
	Status    CommentStatus `json:"status" db:"status" bson:"status"`
	Likes     int           `json:"likes" db:"likes" bson:"likes"`
	CreatedAt time.Time     `json:"created_at" db:"created_at" bson:"createdAt"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at" bson:"updatedAt"`
}

// CreateCommentRequest is the payload for creating a comment
type CreateCommentRequest struct {
	ArticleID string        `json:"article_id"`
	Content   string        `json:"content"`
	UserName  string        `json:"user_name"`
	UserEmail string        `json:"user_email,omitempty"`
	Status    CommentStatus `json:"status,omitempty"` // empty means PENDING
}

// CommentFilter narrows a comment listing
type CommentFilter struct {
	ArticleID string
	Status    CommentStatus // empty means any
	Limit     int
	Offset    int
}

// MaxCommentWords is the maximum allowed words in a comment body
const MaxCommentWords = 500

// CommentPage is one page of an article's comments
type CommentPage struct {
	Comments []*Comment `json:"comments"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int        `json:"total"`
}

// Pagination defaults for comment listings
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
