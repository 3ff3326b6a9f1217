package models

import "time"

// EventResponse is a user's RSVP to an event post; at most one per user and post.
type EventResponse struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"size:64;not null;uniqueIndex:idx_response_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_response_post_user" json:"user_id"`
	Response  string    `gorm:"size:16;not null" json:"response"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
