package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/utils"
)

// PostDetailRoute is the route whose successful GETs count as a post view.
const PostDetailRoute = "/api/v1/posts/:id"

// PostViewRecorder counts successful post detail views per UTC day.
func PostViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet || c.FullPath() != PostDetailRoute {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 300 {
			return
		}
		postID := c.Param("id")
		if postID == "" {
			return
		}
		if err := RecordPostView(db, postID, time.Now()); err != nil {
			utils.Logger.Warn("record post view", zap.String("post_id", postID), zap.Error(err))
		}
	}
}

// RecordPostView increments today's view counter for postID.
func RecordPostView(db *gorm.DB, postID string, now time.Time) error {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// Atomic upsert to avoid duplicate key errors under concurrency
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "post_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("page_views.count + 1"), "updated_at": now}),
	}).Create(&models.PageView{Date: day, PostID: postID, Count: 1}).Error
}
