package main

import (
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/presence"
	"codeberg.org/anonchat/server/internal/session"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// holds all dependencies and state for the chat server
type Server struct {
	config      *config.Config
	registry    *identity.Registry
	history     *history.Buffer
	tracker     *presence.Tracker
	coordinator *session.Coordinator
	hub         *ws.Hub
	router      *gin.Engine
	startedAt   time.Time
}
