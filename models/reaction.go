package models

import "time"

// Reaction is one user's emoji on a post or comment. Kind holds the reaction
// slug (thumbs_up, heart, ...) so that collations never conflate emojis.
type Reaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"size:64;index;not null" json:"post_id"`
	TargetID  string    `gorm:"size:64;not null;uniqueIndex:idx_reaction_user_target_kind" json:"target_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reaction_user_target_kind" json:"user_id"`
	Kind      string    `gorm:"size:16;not null;uniqueIndex:idx_reaction_user_target_kind" json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}
