package models

import "time"

// UploadedFile records a stored upload. Files not attached to a post by
// ExpireAt are removed by the upload cleaner.
type UploadedFile struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	PostID    *string    `gorm:"size:64;index" json:"post_id"`
	FilePath  string     `gorm:"size:1024;not null" json:"-"`
	URL       string     `gorm:"size:1024;not null;index" json:"url"`
	Kind      string     `gorm:"size:16;not null" json:"kind"`
	Mime      string     `gorm:"size:100" json:"mime"`
	SizeBytes int64      `json:"size_bytes"`
	ExpireAt  *time.Time `gorm:"index" json:"expire_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
