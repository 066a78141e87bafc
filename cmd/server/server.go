package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/logger"
	"codeberg.org/anonchat/server/internal/presence"
	"codeberg.org/anonchat/server/internal/session"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve timezone: %w", err)
	}

	hub := ws.NewHub(cfg.MaxMessageBytes)
	registry := identity.NewRegistry()
	buffer := history.NewBuffer(cfg.HistoryLimit)

	// grace timers fire on their own goroutines and re-enter through the hub loop
	var coordinator *session.Coordinator

	tracker := presence.NewTracker(registry, cfg.GracePeriod, func(e presence.Expiry) {
		hub.Enqueue(func() {
			coordinator.ExpireGrace(e)
		})
	})

	coordinator = session.NewCoordinator(registry, buffer, tracker, hub, session.Options{
		InitHistory:      cfg.InitHistory,
		MaxTextLength:    cfg.MaxTextLength,
		MaxCaptionLength: cfg.MaxCaptionLength,
		Location:         loc,
	})

	ws.Attach(hub, coordinator)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.CustomRecovery(recoverPanic))

	server := &Server{
		config:      cfg,
		registry:    registry,
		history:     buffer,
		tracker:     tracker,
		coordinator: coordinator,
		hub:         hub,
		router:      router,
		startedAt:   time.Now(),
	}

	RegisterRoutes(router, server)

	logger.Info("chat state initialized",
		"history_limit", cfg.HistoryLimit,
		"init_history", cfg.InitHistory,
		"grace_period", cfg.GracePeriod.String(),
		"max_message_bytes", cfg.MaxMessageBytes,
		"timezone", loc.String(),
	)

	return server, nil
}

// stops the hub loop after it has notified every client, then the grace timers
func (s *Server) Shutdown() {
	s.hub.Shutdown()
	<-s.hub.Done()

	// the loop is gone, nothing else touches the tracker now
	s.coordinator.Close()
}
