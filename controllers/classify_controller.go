package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/utils"
)

// ClassifyController turns free text into typed post previews.
type ClassifyController struct {
	svc *classifier.Service
}

func NewClassifyController(svc *classifier.Service) *ClassifyController {
	if svc == nil {
		svc = classifier.NewService(nil, nil, utils.Logger)
	}
	return &ClassifyController{svc: svc}
}

// Classify answers {type, confidence, extractedData}. It never fails on content.
func (c *ClassifyController) Classify(ctx *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required,max=5000"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40080, err)
		return
	}
	res, _ := c.svc.Classify(ctx.Request.Context(), req.Text)
	utils.Success(ctx, res)
}

// Preview classifies text, or takes a draft as is, and returns the enhanced
// draft with every field its type requires.
func (c *ClassifyController) Preview(ctx *gin.Context) {
	var req struct {
		Text    string            `json:"text" binding:"max=5000"`
		Preview *feed.PostPreview `json:"preview"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40081, err)
		return
	}

	switch {
	case req.Text != "":
		res, pv, remote := c.svc.Preview(ctx.Request.Context(), req.Text)
		utils.Success(ctx, gin.H{"result": res, "preview": pv, "remote": remote})
	case req.Preview != nil:
		pv := *req.Preview
		t, err := feed.ParsePostType(string(pv.Type))
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40082, "type must be event, lost_found or announcement")
			return
		}
		pv.Type = t
		utils.Success(ctx, gin.H{"preview": c.svc.Local.Complete(classifier.Enhance(pv))})
	default:
		utils.Error(ctx, http.StatusBadRequest, 40083, "text or preview is required")
	}
}
