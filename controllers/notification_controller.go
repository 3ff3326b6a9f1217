package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/repositories"
	"github.com/campusfeed/campusfeed/utils"
)

// NotificationController exposes the caller's notifications.
type NotificationController struct {
	notices *repositories.NotificationRepository
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{notices: repositories.NewNotificationRepository(db)}
}

// List returns a page of notifications; unread=true limits it to unread ones.
func (n *NotificationController) List(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	unreadOnly, _ := strconv.ParseBool(ctx.DefaultQuery("unread", "false"))
	items, total, err := n.notices.List(ctx.Request.Context(), uid, unreadOnly, page, pageSize)
	if err != nil {
		repoError(ctx, err, 40407, 50060, "notifications")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": utils.NewPagination(page, pageSize, total)})
}

func (n *NotificationController) UnreadCount(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	count, err := n.notices.UnreadCount(ctx.Request.Context(), uid)
	if err != nil {
		repoError(ctx, err, 40407, 50061, "notifications")
		return
	}
	utils.Success(ctx, gin.H{"unread": count})
}

// MarkRead marks one of the caller's notifications read.
func (n *NotificationController) MarkRead(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid notification id")
		return
	}
	if err := n.notices.MarkRead(ctx.Request.Context(), uid, uint(id)); err != nil {
		repoError(ctx, err, 40407, 50062, "notification")
		return
	}
	utils.Success(ctx, gin.H{"id": id, "is_read": true})
}

func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	updated, err := n.notices.MarkAllRead(ctx.Request.Context(), uid)
	if err != nil {
		repoError(ctx, err, 40407, 50063, "notifications")
		return
	}
	utils.Success(ctx, gin.H{"updated": updated})
}
