package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/controllers"
	"github.com/campusfeed/campusfeed/middleware"
	"github.com/campusfeed/campusfeed/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, svc *classifier.Service) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterValidators()

	r := gin.New()
	// access log goes to its own rolling file; fall back to the app logger
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			accessLog = gl
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.PostViewRecorder(db))

	r.Static(controllers.UploadURLPrefix, cfg.UploadDir)
	r.GET("/health", controllers.Health(db))

	if svc == nil {
		svc = classifier.NewService(nil, nil, utils.Logger)
	}
	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, svc.Local)
	classifyController := controllers.NewClassifyController(svc)
	userController := controllers.NewUserController(db)
	noticeController := controllers.NewNotificationController(db)
	uploadController := controllers.NewUploadController(db)
	statsController := controllers.NewStatsController(db)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")
	api.GET("/meta", configController.GetMeta)
	api.GET("/stats", statsController.GetStats)

	classify := api.Group("/classify")
	classify.Use(middleware.RateLimitMiddleware())
	classify.POST("", classifyController.Classify)
	classify.POST("/preview", classifyController.Preview)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/signup", authController.Signup)
	authGroup.GET("/verify", authController.Verify)
	authGroup.POST("/login", authController.Login)
	authGroup.GET("/oauth/google/login", authController.GoogleLogin)
	authGroup.GET("/oauth/google/callback", authController.GoogleCallback)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	posts := api.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/:id", postController.GetPost)
	posts.GET("/:id/comments", postController.ListComments)
	posts.GET("/:id/stats", postController.PostStats)

	api.GET("/users/:id", userController.GetUser)
	api.GET("/users/:id/posts", userController.ListUserPosts)
	api.GET("/users/:id/comments", userController.ListUserComments)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.GET("/posts/:id/state", postController.PostState)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.DELETE("/comments/:commentId", postController.DeleteComment)
	protected.POST("/reactions", postController.ToggleReaction)
	protected.POST("/events/:id/rsvp", postController.RSVP)
	protected.POST("/upload", uploadController.Upload)
	protected.GET("/notifications", noticeController.List)
	protected.GET("/notifications/unread-count", noticeController.UnreadCount)
	protected.POST("/notifications/:id/read", noticeController.MarkRead)
	protected.POST("/notifications/read-all", noticeController.MarkAllRead)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})
	return r
}
