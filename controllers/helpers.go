package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/middleware"
	"github.com/campusfeed/campusfeed/repositories"
	"github.com/campusfeed/campusfeed/utils"
)

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// currentAuthor is the feed identity of the authenticated caller.
func currentAuthor(ctx *gin.Context) (feed.Author, uint, bool) {
	uid, ok := getUserID(ctx)
	if !ok {
		return feed.Author{}, 0, false
	}
	return feed.Author{ID: repositories.UserKey(uid), Name: ctx.GetString(middleware.ContextNameKey)}, uid, true
}

func isAdmin(ctx *gin.Context) bool {
	return config.Get().IsAdminEmail(ctx.GetString(middleware.ContextEmailKey))
}

// cachedResponse serves a cached envelope for key when present.
func cachedResponse(ctx *gin.Context, key string) bool {
	if b, ok := utils.CacheGetBytes(key); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return true
	}
	return false
}

// successCached answers with payload and stores the full envelope under key.
func successCached(ctx *gin.Context, key string, payload interface{}) {
	utils.CacheSetJSON(key, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 0)
	utils.Success(ctx, payload)
}

// repoError maps repository errors onto the response envelope.
func repoError(ctx *gin.Context, err error, notFoundCode, internalCode int, what string) {
	if errors.Is(err, repositories.ErrNotFound) {
		utils.Error(ctx, http.StatusNotFound, notFoundCode, what+" not found")
		return
	}
	utils.Logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.String("what", what), zap.Error(err))
	utils.Error(ctx, http.StatusInternalServerError, internalCode, "failed to load "+what)
}

// invalidateUserCaches drops every cached profile and post page of uid.
func invalidateUserCaches(uid uint) {
	utils.InvalidateByPrefix(utils.CacheKey(utils.CacheUserPrefix, repositories.UserKey(uid), ""))
}
