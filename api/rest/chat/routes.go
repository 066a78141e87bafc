package chat

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/session"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

func RegisterRoutes(router *gin.RouterGroup, hub *ws.Hub, coord *session.Coordinator) {
	group := router.Group("/chat")
	group.GET("/stats", StatsHandler(hub, coord))
	group.GET("/history", HistoryHandler(hub, coord))
}
