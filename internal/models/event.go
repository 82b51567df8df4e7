package models

import "time"

// ModerationAction names the operation that produced a ModerationEvent
type ModerationAction string

const (
	ActionCreate  ModerationAction = "create"
	ActionApprove ModerationAction = "approve"
	ActionReject  ModerationAction = "reject"
	ActionStatus  ModerationAction = "set_status"
	ActionDelete  ModerationAction = "delete"
	ActionRecount ModerationAction = "recount"
)

// ModerationEvent is published after a committed moderation change
type ModerationEvent struct {
	CommentID string           `json:"comment_id,omitempty"`
	ArticleID string           `json:"article_id"`
	Action    ModerationAction `json:"action"`
	From      CommentStatus    `json:"from,omitempty"`
	To        CommentStatus    `json:"to,omitempty"`
	Delta     int              `json:"delta"`
	// Set only by recount, which knows the final value
	CommentCount *int      `json:"comment_count,omitempty"`
	At           time.Time `json:"at"`
}

// ModerationResult describes the outcome of one moderation call
type ModerationResult struct {
	Comment *Comment      `json:"comment,omitempty"`
	From    CommentStatus `json:"from"`
	To      CommentStatus `json:"to"`
	Delta   int           `json:"delta"`
	Changed bool          `json:"changed"`
}

// RecountResult reports a reconciliation of an article's comment counter
type RecountResult struct {
	ArticleID string `json:"article_id"`
	Previous  int    `json:"previous"`
	Current   int    `json:"current"`
}
