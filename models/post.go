package models

import "time"

// Post is one feed entry. Variant columns are empty for the types that do not use them.
type Post struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Type          string    `gorm:"size:20;index;not null" json:"type"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	ImageURL      string    `gorm:"size:512" json:"image_url"`
	Location      string    `gorm:"size:255" json:"location"`
	EventDate     string    `gorm:"size:10" json:"event_date"`
	EventTime     string    `gorm:"size:5" json:"event_time"`
	Department    string    `gorm:"size:64;index" json:"department"`
	ItemType      string    `gorm:"size:8" json:"item_type"`
	ItemName      string    `gorm:"size:64" json:"item_name"`
	AttachmentURL string    `gorm:"size:512" json:"attachment_url"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	User          User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
}
