package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/repositories"
	"github.com/campusfeed/campusfeed/utils"
)

// ToggleReaction flips the caller's emoji on a post or a comment.
func (p *PostController) ToggleReaction(ctx *gin.Context) {
	var req struct {
		TargetType string `json:"target_type" binding:"required,oneof=post comment"`
		TargetID   string `json:"target_id" binding:"required,max=64"`
		Type       string `json:"type" binding:"required,reaction"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40050, err)
		return
	}
	rt, _ := feed.ParseReactionType(req.Type)
	author, uid, ok := currentAuthor(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40130, "unauthorized")
		return
	}

	rctx := ctx.Request.Context()
	target := repositories.ReactionTarget{PostID: req.TargetID}
	notice := models.Notification{ActorID: uid, ActorName: author.Name, Type: models.NotifyPostReaction}
	if req.TargetType == "comment" {
		cmt, err := p.posts.Comment(rctx, req.TargetID)
		if err != nil {
			repoError(ctx, err, 40430, 50050, "comment")
			return
		}
		target = repositories.ReactionTarget{PostID: cmt.PostID, CommentID: cmt.ID}
		notice.UserID = cmt.UserID
		notice.Type = models.NotifyCommentReaction
		notice.CommentID = cmt.ID
		notice.Content = author.Name + " reacted " + string(rt) + " to your comment"
	} else {
		row, err := p.posts.Row(rctx, req.TargetID)
		if err != nil {
			repoError(ctx, err, 40431, 50051, "post")
			return
		}
		notice.UserID = row.UserID
		notice.Content = author.Name + " reacted " + string(rt) + " to " + row.Title
	}
	notice.PostID = target.PostID

	toggled, counts, err := p.posts.ToggleReaction(rctx, target, uid, rt)
	if err != nil {
		repoError(ctx, err, 40430, 50052, "reaction target")
		return
	}
	if toggled {
		p.notify(ctx, notice)
	}

	utils.InvalidatePost(target.PostID)
	utils.Success(ctx, gin.H{"toggled": toggled, "type": rt, "reactions": counts})
}

// RSVP records the caller's response to an event. Sending the current
// response again, or an empty one, withdraws it.
func (p *PostController) RSVP(ctx *gin.Context) {
	var req struct {
		Response string `json:"response" binding:"omitempty,rsvp"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40060, err)
		return
	}
	var resp feed.Response
	if req.Response != "" {
		resp, _ = feed.ParseResponse(req.Response)
	}
	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40140, "unauthorized")
		return
	}

	postID := ctx.Param("id")
	current, counts, err := p.posts.ToggleRSVP(ctx.Request.Context(), postID, uid, resp)
	if errors.Is(err, repositories.ErrNotEvent) {
		utils.Error(ctx, http.StatusBadRequest, 40061, "only events accept RSVPs")
		return
	}
	if err != nil {
		repoError(ctx, err, 40440, 50060, "event")
		return
	}

	utils.InvalidatePost(postID)
	utils.Success(ctx, gin.H{"response": current, "responses": counts})
}
