package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/peerdial/signaling/config"
	"github.com/peerdial/signaling/internal/app"
	"github.com/peerdial/signaling/internal/handlers"
	"github.com/peerdial/signaling/internal/middleware"
	"github.com/peerdial/signaling/internal/presence"
	"github.com/peerdial/signaling/pkg/metrics"
)

func main() {
	// Load .env if present; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := app.NewLogger(cfg.Environment)

	// The presence mirror is best-effort; without Redis the relay still
	// works, operators just lose the out-of-process peer sets.
	var tracker *presence.Tracker
	if rdb, err := presence.NewClient(cfg.Redis); err != nil {
		logger.Warn("redis unavailable, presence mirror disabled", "err", err)
	} else {
		defer rdb.Close()
		tracker = presence.NewTracker(rdb, logger)
		logger.Info("redis connection established")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	sig := handlers.NewSignalingHandler(logger, tracker)

	apiGroup := router.Group("/api")
	{
		// Login endpoint (public)
		apiGroup.POST("/auth/login", handlers.Login(cfg.JWTSecret))

		// Operator surface (requires JWT)
		apiGroup.GET("/stats", middleware.JWTAuth(cfg.JWTSecret), handlers.Stats(sig.Router()))
		apiGroup.GET("/rooms/:roomId", middleware.JWTAuth(cfg.JWTSecret), handlers.RoomInfo(sig.Router()))
	}

	wsGroup := router.Group("/ws")
	{
		// WebSocket signaling - identity optional, rooms joined in-band
		wsGroup.GET("/signal", middleware.Identity(cfg.JWTSecret), sig.HandleSignaling)
	}

	logger.Info("starting signaling relay", "port", cfg.Port, "env", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}
