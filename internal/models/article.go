package models

import (
	"time"
)

// Article represents an article in the system
type Article struct {
	ID           string     `json:"id" db:"id" bson:"_id"`
	Slug         string     `json:"slug" db:"slug" bson:"slug"`
	Title        string     `json:"title" db:"title" bson:"title"`
	Body         string     `json:"body" db:"body" bson:"body"`
	AuthorID     string     `json:"author_id" db:"author_id" bson:"authorId"`
	Tags         []string   `json:"tags" db:"-" bson:"tags"`
	TagsJSON     []byte     `json:"-" db:"tags" bson:"-"`
	Status       string     `json:"status" db:"status" bson:"status"`
	CommentCount int        `json:"comment_count" db:"comment_count" bson:"commentCount"`
	PublishedAt  *time.Time `json:"published_at,omitempty" db:"published_at" bson:"publishedAt,omitempty"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at" bson:"updatedAt"`
}

// ValidStatuses defines allowed article statuses
var ValidStatuses = map[string]bool{
	"draft":     true,
	"published": true,
}

// CreateArticleRequest is the payload for creating an article
type CreateArticleRequest struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	AuthorID    string   `json:"author_id"`
	Tags        []string `json:"tags"`
	Status      string   `json:"status"`
	PublishedAt string   `json:"published_at,omitempty"`
}

// ArticleCommentCount is one row of the top-commented ranking
type ArticleCommentCount struct {
	ID           string `json:"id" db:"id" bson:"_id"`
	Slug         string `json:"slug" db:"slug" bson:"slug"`
	Title        string `json:"title" db:"title" bson:"title"`
	CommentCount int    `json:"comment_count" db:"comment_count" bson:"commentCount"`
}

// Stats is the dashboard summary
type Stats struct {
	Articles         int                   `json:"articles"`
	Comments         int                   `json:"comments"`
	CommentsByStatus map[CommentStatus]int `json:"comments_by_status"`
	TopArticles      []ArticleCommentCount `json:"top_articles"`
}
