package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/utils"
)

// StatsController provides site statistics such as counts and today's views.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// siteStats is cached for statsTTL; counters may lag writes by that much.
type siteStats struct {
	UserCount      int64                   `json:"user_count"`
	PostCount      int64                   `json:"post_count"`
	PostsByType    map[feed.PostType]int64 `json:"posts_by_type"`
	CommentCount   int64                   `json:"comment_count"`
	ReactionCount  int64                   `json:"reaction_count"`
	TodayViewCount int64                   `json:"today_view_count"`
}

const statsTTL = 30 * time.Second

// GetStats returns aggregate statistics. Failed counters read as zero.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var st siteStats
	if utils.CacheGetJSON(utils.CacheSiteStats, &st) {
		utils.Success(ctx, st)
		return
	}

	db := s.db.WithContext(ctx.Request.Context())
	count := func(name string, q *gorm.DB) int64 {
		var n int64
		if err := q.Count(&n).Error; err != nil {
			utils.Logger.Warn("stats count failed", zap.String("counter", name), zap.Error(err))
			return 0
		}
		return n
	}

	st.PostsByType = make(map[feed.PostType]int64, len(feed.PostTypes))
	for _, t := range feed.PostTypes {
		st.PostsByType[t] = count("posts_"+string(t), db.Model(&models.Post{}).Where("type = ?", string(t)))
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&st.TodayViewCount).Error; err != nil {
		utils.Logger.Warn("stats views failed", zap.Error(err))
		st.TodayViewCount = 0
	}

	st.UserCount = count("users", db.Model(&models.User{}))
	st.PostCount = count("posts", db.Model(&models.Post{}))
	st.CommentCount = count("comments", db.Model(&models.Comment{}))
	st.ReactionCount = count("reactions", db.Model(&models.Reaction{}))

	utils.CacheSetJSON(utils.CacheSiteStats, st, statsTTL)
	utils.Success(ctx, st)
}
