package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/api/rest/pagination"
	"codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/session"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// how long a request waits for the hub loop
const queryTimeout = 2 * time.Second

// returns a snapshot of presence and history counters
func StatsHandler(hub *ws.Hub, coord *session.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
		defer cancel()

		var stats session.Stats

		if err := hub.Query(ctx, func() { stats = coord.Stats() }); err != nil {
			errors.ServiceUnavailable(c, "chat is not available", err)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// returns a page of recent messages. offset counts back from the newest
func HistoryHandler(hub *ws.Hub, coord *session.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params pagination.Params
		if err := c.ShouldBindQuery(&params); err != nil {
			errors.BadRequest(c, "invalid pagination parameters", err)
			return
		}

		params = params.Normalize(defaultHistoryLimit, maxHistoryLimit)

		ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
		defer cancel()

		var (
			messages []history.ChatEvent
			total    int
		)

		err := hub.Query(ctx, func() {
			messages, total = coord.History(params.Offset, params.Limit)
		})
		if err != nil {
			errors.ServiceUnavailable(c, "chat is not available", err)
			return
		}

		c.JSON(http.StatusOK, HistoryResponse{
			Messages:   messages,
			Pagination: pagination.NewMeta(params, total),
		})
	}
}
