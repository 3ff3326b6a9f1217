package models

import "time"

const (
	NotifyCommentReply    = "comment_reply"
	NotifyPostComment     = "post_comment"
	NotifyPostReaction    = "post_reaction"
	NotifyCommentReaction = "comment_reaction"
)

// Notification tells a user that someone interacted with their post or comment.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ActorID   uint      `gorm:"not null" json:"actor_id"`
	ActorName string    `gorm:"size:120" json:"actor_name"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Content   string    `gorm:"size:500" json:"content"`
	PostID    string    `gorm:"size:64" json:"post_id"`
	CommentID string    `gorm:"size:64" json:"comment_id,omitempty"`
	IsRead    bool      `gorm:"index;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
