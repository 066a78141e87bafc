package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/api/rest/chat"
	"codeberg.org/anonchat/server/api/rest/health"
	"codeberg.org/anonchat/server/api/websocket"
	apperrors "codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/logger"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) {
	router.Use(CORSMiddleware(server.config.AllowedOrigins))
	router.GET("/health", health.Handler(server.hub, server.startedAt))

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		chat.RegisterRoutes(v1, server.hub, server.coordinator)
		websocket.RegisterRoutes(v1, server.hub, ws.NewOriginChecker(server.config.Environment, server.config.AllowedOrigins))
	}

	registerStaticIndex(router, server.config.StaticDir)

	router.NoRoute(func(c *gin.Context) {
		apperrors.NotFound(c, "route")
	})
}

// turns a handler panic into a 500 instead of a dropped connection
func recoverPanic(c *gin.Context, recovered any) {
	apperrors.InternalError(c, "internal server error", fmt.Errorf("panic: %v", recovered))
	c.Abort()
}

// allows the listed origins, or any origin when none are configured
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = allowedOrigins
	} else {
		cfg.AllowAllOrigins = true
	}

	return cors.New(cfg)
}

// serves dir/index.html at / when present
func registerStaticIndex(router *gin.Engine, dir string) {
	if dir == "" {
		return
	}

	index := filepath.Join(dir, "index.html")

	if _, err := os.Stat(index); err != nil {
		logger.Warn("static index not found, skipping", "path", index, "error", err)
		return
	}

	router.StaticFile("/", index)
}
