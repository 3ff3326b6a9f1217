package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campusfeed/campusfeed/classifier"
	"github.com/campusfeed/campusfeed/config"
	"github.com/campusfeed/campusfeed/models"
	"github.com/campusfeed/campusfeed/routes"
	"github.com/campusfeed/campusfeed/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		utils.Logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := config.InitDatabase(models.All()...)
	if err != nil {
		utils.Logger.Fatal("database init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local := classifier.New(&classifier.Extractor{Fallback: cfg.DefaultLocation})
	var remote classifier.Remote
	if cfg.GeminiAPIKey != "" {
		g, err := classifier.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			utils.Logger.Warn("gemini disabled, using keyword rules", zap.Error(err))
		} else {
			remote = g
		}
	}
	svc := classifier.NewService(local, remote, utils.Logger.Named("classifier"))
	if cfg.ClassifyTimeoutSec > 0 {
		svc.Timeout = time.Duration(cfg.ClassifyTimeoutSec) * time.Second
	}

	r := routes.SetupRouter(db, svc)

	// Start background cleanup for expired uploads (best-effort)
	utils.NewUploadCleaner(db, 5*time.Minute).Start(ctx)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(ctx, ":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
