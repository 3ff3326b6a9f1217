package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/feed"
	"github.com/campusfeed/campusfeed/utils"
)

// ConfigController serves the static vocabularies the UI needs to render forms.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

type reactionMeta struct {
	Emoji feed.ReactionType `json:"emoji"`
	Slug  string            `json:"slug"`
}

// GetMeta returns post types, reactions, RSVP options, departments and campus defaults.
func (c *ConfigController) GetMeta(ctx *gin.Context) {
	cfg := config.Get()
	reactions := make([]reactionMeta, 0, len(feed.ReactionTypes))
	for _, r := range feed.ReactionTypes {
		reactions = append(reactions, reactionMeta{Emoji: r, Slug: r.Slug()})
	}
	utils.Success(ctx, gin.H{
		"campus":           cfg.CampusName,
		"post_types":       feed.PostTypes,
		"reactions":        reactions,
		"responses":        feed.ResponseTypes,
		"departments":      classifier.Departments,
		"default_location": cfg.DefaultLocation,
		"upload_max_mb":    cfg.UploadMaxMB,
	})
}
