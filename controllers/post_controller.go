package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/repositories"
	"github.com/campusfeed/campusfeed/utils"
)

// PostController manages posts, their comments, reactions and RSVPs.
type PostController struct {
	posts   *repositories.PostRepository
	notices *repositories.NotificationRepository
	local   *classifier.Classifier
	now     func() time.Time
}

// NewPostController creates a new PostController instance. local fills the
// fields a submitted preview leaves empty.
func NewPostController(db *gorm.DB, local *classifier.Classifier) *PostController {
	if local == nil {
		local = classifier.New(nil)
	}
	return &PostController{
		posts:   repositories.NewPostRepository(db),
		notices: repositories.NewNotificationRepository(db),
		local:   local,
		now:     time.Now,
	}
}

// postRequest is a confirmed (possibly edited) preview.
type postRequest struct {
	Type          string `json:"type" binding:"required,posttype"`
	Title         string `json:"title" binding:"max=200"`
	Description   string `json:"description" binding:"max=5000"`
	Location      string `json:"location" binding:"max=255"`
	Date          string `json:"date" binding:"omitempty,isodate"`
	Time          string `json:"time" binding:"omitempty,hhmm"`
	Department    string `json:"department" binding:"max=64"`
	ItemType      string `json:"itemType" binding:"omitempty,oneof=lost found"`
	ItemName      string `json:"itemName" binding:"max=64"`
	ImageURL      string `json:"imageUrl" binding:"max=512"`
	AttachmentURL string `json:"attachmentUrl" binding:"max=512"`
}

func (r postRequest) preview() feed.PostPreview {
	t, _ := feed.ParsePostType(r.Type)
	return feed.PostPreview{
		Type:          t,
		Title:         utils.SanitizeText(r.Title),
		Description:   utils.SanitizeText(r.Description),
		Location:      utils.SanitizeText(r.Location),
		Date:          r.Date,
		Time:          r.Time,
		Department:    utils.SanitizeText(r.Department),
		ItemType:      feed.ItemType(r.ItemType),
		ItemName:      utils.SanitizeText(r.ItemName),
		ImageURL:      utils.SanitizeText(r.ImageURL),
		AttachmentURL: utils.SanitizeText(r.AttachmentURL),
	}
}

func invalidatePostCaches(postID string, authorID uint) {
	utils.InvalidatePost(postID)
	invalidateUserCaches(authorID)
}

// CreatePost publishes a confirmed preview.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40020, err)
		return
	}
	author, uid, ok := currentAuthor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	pv := p.local.Complete(classifier.Enhance(req.preview()))
	post, err := feed.NewPost(pv, author, p.now())
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, err.Error())
		return
	}
	if err := p.posts.Create(ctx.Request.Context(), post); err != nil {
		utils.Logger.Error("create post", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to create post")
		return
	}
	if err := p.posts.AttachUploads(ctx.Request.Context(), post.ID, uid, utils.Unique([]string{pv.ImageURL, pv.AttachmentURL})...); err != nil {
		utils.Logger.Warn("attach uploads", zap.String("post_id", post.ID), zap.Error(err))
	}

	invalidatePostCaches(post.ID, uid)
	utils.Created(ctx, gin.H{"post": post})
}

// ListPosts returns one page of the feed, optionally filtered by type and search term.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	q := repositories.ListQuery{Search: ctx.Query("search"), Page: page, PageSize: pageSize}

	if raw := ctx.Query("type"); raw != "" && raw != "all" {
		t, err := feed.ParsePostType(raw)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40022, "type must be event, lost_found or announcement")
			return
		}
		q.Type = t
	}
	switch sort := ctx.DefaultQuery("sort", repositories.SortNewest); sort {
	case repositories.SortNewest, repositories.SortPopular:
		q.Sort = sort
	default:
		utils.Error(ctx, http.StatusBadRequest, 40023, "sort must be newest or popular")
		return
	}

	// search results are not cached to avoid key explosion
	cacheKey := ""
	if q.Search == "" {
		cacheKey = utils.CacheKey(utils.CachePostList, "type="+string(q.Type), "sort="+q.Sort,
			"page="+strconv.Itoa(page), "size="+strconv.Itoa(pageSize))
		if cachedResponse(ctx, cacheKey) {
			return
		}
	}

	posts, total, err := p.posts.List(ctx.Request.Context(), q)
	if err != nil {
		repoError(ctx, err, 40401, 50021, "posts")
		return
	}
	payload := gin.H{"items": posts, "pagination": utils.NewPagination(page, pageSize, total)}
	if cacheKey != "" {
		successCached(ctx, cacheKey, payload)
		return
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its comment tree, reactions and RSVPs.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")
	cacheKey := utils.CachePostDetail + postID
	if cachedResponse(ctx, cacheKey) {
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), postID)
	if err != nil {
		repoError(ctx, err, 40401, 50022, "post")
		return
	}
	successCached(ctx, cacheKey, gin.H{"post": post})
}

// UpdatePost lets the author edit a post. The type cannot change.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40024, err)
		return
	}
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}
	post, err := p.posts.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		repoError(ctx, err, 40403, 50023, "post")
		return
	}
	if post.AuthorID != repositories.UserKey(uid) {
		utils.Error(ctx, http.StatusForbidden, 40301, "you can only update your own posts")
		return
	}

	pv := req.preview()
	if pv.Type != post.Type {
		utils.Error(ctx, http.StatusBadRequest, 40025, "post type cannot be changed")
		return
	}
	edited, err := feed.EditPost(post, p.local.Complete(classifier.Enhance(pv)))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40026, err.Error())
		return
	}
	if err := p.posts.Update(ctx.Request.Context(), edited); err != nil {
		repoError(ctx, err, 40403, 50024, "post")
		return
	}
	if err := p.posts.AttachUploads(ctx.Request.Context(), edited.ID, uid, utils.Unique([]string{edited.ImageURL, pv.AttachmentURL})...); err != nil {
		utils.Logger.Warn("attach uploads", zap.String("post_id", edited.ID), zap.Error(err))
	}

	invalidatePostCaches(edited.ID, uid)
	utils.Success(ctx, gin.H{"post": edited})
}

// DeletePost lets the author or an admin delete a post and everything under it.
func (p *PostController) DeletePost(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}
	row, err := p.posts.Row(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		repoError(ctx, err, 40404, 50025, "post")
		return
	}
	if row.UserID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40302, "you can only delete your own posts")
		return
	}
	if err := p.posts.Delete(ctx.Request.Context(), row.ID); err != nil {
		repoError(ctx, err, 40404, 50026, "post")
		return
	}

	invalidatePostCaches(row.ID, row.UserID)
	utils.Success(ctx, gin.H{"message": "post deleted", "id": row.ID})
}

// PostStats returns views and engagement counters of a post.
func (p *PostController) PostStats(ctx *gin.Context) {
	st, err := p.posts.Stats(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		repoError(ctx, err, 40405, 50027, "post")
		return
	}
	utils.Success(ctx, st)
}

// PostState returns the caller's reactions and RSVP on a post, so clients can
// render toggles after a reload.
func (p *PostController) PostState(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	postID := ctx.Param("id")
	if _, err := p.posts.Row(ctx.Request.Context(), postID); err != nil {
		repoError(ctx, err, 40406, 50028, "post")
		return
	}
	st, err := p.posts.State(ctx.Request.Context(), postID, uid)
	if err != nil {
		repoError(ctx, err, 40406, 50028, "post")
		return
	}
	utils.Success(ctx, st)
}

func (p *PostController) notify(ctx *gin.Context, n models.Notification) {
	if err := p.notices.Notify(ctx.Request.Context(), n); err != nil {
		utils.Logger.Warn("store notification", zap.String("type", n.Type), zap.Error(err))
	}
}
