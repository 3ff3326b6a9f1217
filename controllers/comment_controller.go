package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/utils"
)

// CreateComment adds a top-level comment, or a reply when parent_id is given.
// Replies may only target top-level comments of the same post.
func (p *PostController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content  string `json:"content" binding:"required,max=2000"`
		ParentID string `json:"parent_id" binding:"max=64"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40030, err)
		return
	}
	content := utils.SanitizeText(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40031, "content cannot be empty")
		return
	}
	author, uid, ok := currentAuthor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40114, "unauthorized")
		return
	}

	rctx := ctx.Request.Context()
	post, err := p.posts.Row(rctx, ctx.Param("id"))
	if err != nil {
		repoError(ctx, err, 40402, 50030, "post")
		return
	}

	var comment feed.Comment
	notice := models.Notification{
		UserID: post.UserID, ActorID: uid, ActorName: author.Name,
		Type: models.NotifyPostComment, PostID: post.ID,
		Content: author.Name + " commented on " + post.Title,
	}
	if req.ParentID == "" {
		comment = feed.NewComment(content, author, p.now())
	} else {
		parent, err := p.posts.Comment(rctx, req.ParentID)
		if err != nil {
			repoError(ctx, err, 40421, 50031, "parent comment")
			return
		}
		if parent.PostID != post.ID || parent.ParentID != nil {
			utils.Error(ctx, http.StatusBadRequest, 40032, "replies can only target top-level comments of this post")
			return
		}
		comment = feed.NewReply(content, author, p.now())
		comment.ParentID = parent.ID
		notice.UserID = parent.UserID
		notice.Type = models.NotifyCommentReply
		notice.Content = author.Name + " replied to your comment"
	}

	if err := p.posts.CreateComment(rctx, post.ID, comment.ParentID, comment); err != nil {
		utils.Logger.Error("create comment", zap.String("post_id", post.ID), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to create comment")
		return
	}
	notice.CommentID = comment.ID
	p.notify(ctx, notice)

	utils.InvalidatePost(post.ID)
	invalidateUserCaches(uid)
	utils.Created(ctx, gin.H{"comment": comment})
}

// ListComments returns the comment tree of a post.
func (p *PostController) ListComments(ctx *gin.Context) {
	tree, err := p.posts.Comments(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		repoError(ctx, err, 40402, 50033, "post")
		return
	}
	utils.Success(ctx, gin.H{"items": tree, "total": feed.CountTree(tree)})
}

// DeleteComment allows the comment owner or admin to delete a comment and its replies.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	rctx := ctx.Request.Context()
	cmt, err := p.posts.Comment(rctx, ctx.Param("commentId"))
	if err != nil {
		repoError(ctx, err, 40420, 50070, "comment")
		return
	}
	if cmt.UserID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40320, "you can only delete your own comment")
		return
	}
	ids, err := p.posts.DeleteComment(rctx, cmt.ID)
	if err != nil {
		repoError(ctx, err, 40420, 50071, "comment")
		return
	}

	utils.InvalidatePost(cmt.PostID)
	invalidateUserCaches(cmt.UserID)
	utils.Success(ctx, gin.H{"message": "comment deleted", "deleted": ids})
}
