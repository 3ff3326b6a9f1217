package utils

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/models"
)

// UploadCleaner periodically removes uploads that were never attached to a post.
type UploadCleaner struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// NewUploadCleaner creates a cleaner; a non-positive interval means five minutes.
func NewUploadCleaner(db *gorm.DB, interval time.Duration) *UploadCleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &UploadCleaner{db: db, interval: interval, now: time.Now}
}

// Start runs the cleaner until ctx is cancelled.
func (c *UploadCleaner) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := c.RunOnce(ctx); err != nil {
					Logger.Warn("upload cleaner failed", zap.Error(err))
				} else if n > 0 {
					Logger.Info("upload cleaner removed orphans", zap.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RunOnce deletes up to 100 expired orphan uploads and returns how many rows went.
func (c *UploadCleaner) RunOnce(ctx context.Context) (int, error) {
	var items []models.UploadedFile
	err := c.db.WithContext(ctx).
		Where("post_id IS NULL AND expire_at IS NOT NULL AND expire_at <= ?", c.now()).
		Limit(100).Find(&items).Error
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items {
		if it.FilePath != "" {
			if err := os.Remove(it.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
				Logger.Warn("upload cleaner remove file", zap.String("path", it.FilePath), zap.Error(err))
			}
		}
		// the row goes even when the file could not be removed
		if err := c.db.WithContext(ctx).Delete(&models.UploadedFile{}, it.ID).Error; err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
