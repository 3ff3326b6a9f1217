package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/utils"
)

// Health reports liveness and whether the database answers a ping.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			pctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(pctx)
			cancel()
		}
		if err != nil {
			utils.Respond(ctx, http.StatusServiceUnavailable, 50300, "database unavailable", gin.H{"status": "degraded"})
			return
		}
		utils.Success(ctx, gin.H{"status": "ok", "redis": utils.GetRedis() != nil})
	}
}
