package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/repositories"
	"github.com/campusfeed/campusfeed/utils"
)

// UserController serves public profiles and per-user activity.
type UserController struct {
	db    *gorm.DB
	posts *repositories.PostRepository
}

func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db, posts: repositories.NewPostRepository(db)}
}

func (u *UserController) loadUser(ctx *gin.Context) (models.User, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid user id")
		return models.User{}, false
	}
	var user models.User
	if err := u.db.WithContext(ctx.Request.Context()).First(&user, id).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
		return models.User{}, false
	}
	return user, true
}

// GetUser returns a public profile with activity counters.
func (u *UserController) GetUser(ctx *gin.Context) {
	user, ok := u.loadUser(ctx)
	if !ok {
		return
	}
	cacheKey := utils.CacheKey(utils.CacheUserPrefix, repositories.UserKey(user.ID), "profile")
	if cachedResponse(ctx, cacheKey) {
		return
	}

	db := u.db.WithContext(ctx.Request.Context())
	var postCount, commentCount, reactionsReceived int64
	if err := db.Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&postCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to load user stats")
		return
	}
	if err := db.Model(&models.Comment{}).Where("user_id = ?", user.ID).Count(&commentCount).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to load user stats")
		return
	}
	err := db.Model(&models.Reaction{}).
		Where("target_id IN (?)", db.Model(&models.Post{}).Select("id").Where("user_id = ?", user.ID)).
		Count(&reactionsReceived).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to load user stats")
		return
	}

	successCached(ctx, cacheKey, gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"branch":     user.Branch,
		"year":       user.Year,
		"bio":        user.Bio,
		"avatar_url": user.AvatarURL,
		"created_at": user.CreatedAt,
		"stats": gin.H{
			"posts":              postCount,
			"comments":           commentCount,
			"reactions_received": reactionsReceived,
		},
	})
}

// ListUserPosts returns one page of the user's posts, newest first.
func (u *UserController) ListUserPosts(ctx *gin.Context) {
	user, ok := u.loadUser(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	cacheKey := utils.CacheKey(utils.CacheUserPrefix, repositories.UserKey(user.ID), "posts",
		"page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
	if cachedResponse(ctx, cacheKey) {
		return
	}
	posts, total, err := u.posts.List(ctx.Request.Context(), repositories.ListQuery{
		Sort: repositories.SortNewest, UserID: user.ID, Page: page, PageSize: pageSize,
	})
	if err != nil {
		repoError(ctx, err, 40402, 50081, "posts")
		return
	}
	successCached(ctx, cacheKey, gin.H{"items": posts, "pagination": utils.NewPagination(page, pageSize, total)})
}

type userComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	PostTitle string    `json:"post_title"`
	ParentID  *string   `json:"parent_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ListUserComments returns one page of the user's comments and replies with
// the title of the post they belong to.
func (u *UserController) ListUserComments(ctx *gin.Context) {
	user, ok := u.loadUser(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	db := u.db.WithContext(ctx.Request.Context())

	var total int64
	if err := db.Model(&models.Comment{}).Where("user_id = ?", user.ID).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to load comments")
		return
	}
	items := []userComment{}
	err := db.Table("comments").
		Select("comments.id, comments.post_id, posts.title AS post_title, comments.parent_id, comments.content, comments.created_at").
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("comments.user_id = ?", user.ID).
		Order("comments.created_at DESC").Order("comments.id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Scan(&items).Error
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50082, "failed to load comments")
		return
	}
	utils.Success(ctx, gin.H{"items": items, "pagination": utils.NewPagination(page, pageSize, total)})
}
