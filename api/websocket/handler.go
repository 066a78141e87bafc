package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/logger"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// builds the upgrader used by the chat endpoint
func NewUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// upgrades the request and hands the connection to the hub. the client
// stays unregistered until it sends a register message with its token
func WebSocketHandler(hub *ws.Hub, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := ws.GenerateClientID()
		remoteAddr := c.ClientIP()

		if upgrader.CheckOrigin != nil && !upgrader.CheckOrigin(c.Request) {
			errors.Forbidden(c, "origin not allowed")
			return
		}

		// upgrade writes its own error response on failure
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.ErrorErr(err, "failed to upgrade connection",
				"ip", remoteAddr,
			)

			return
		}

		client := ws.NewClient(clientID, remoteAddr, conn, hub)
		client.Start()

		logger.Debug("websocket connection established",
			"client_id", clientID,
			"ip", remoteAddr,
		)
	}
}
