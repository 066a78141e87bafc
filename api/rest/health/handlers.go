package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ws "codeberg.org/anonchat/server/internal/websocket"
)

const (
	serviceName = "anonchat"
	version     = "1.0.0"
)

// returns the server health status. the service is unavailable once the
// hub loop has stopped
func Handler(hub *ws.Hub, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		state := "healthy"

		select {
		case <-hub.Done():
			status = http.StatusServiceUnavailable
			state = "stopping"
		default:
		}

		c.JSON(status, Response{
			Status:      state,
			Service:     serviceName,
			Version:     version,
			Connections: hub.ClientCount(),
			Uptime:      time.Since(startedAt).Round(time.Second).String(),
		})
	}
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, PingResponse{
		Message: "pong",
	})
}
