package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	apperrors "codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/logger"
)

// creates a new webSocket client connection
func NewClient(id, remoteAddr string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:         id,
		RemoteAddr: remoteAddr,
		conn:       conn,
		hub:        hub,
		send:       make(chan []byte, sendBufferSize),
	}
}

// hands the client to the hub and starts its pumps
func (c *Client) Start() {
	c.hub.register(c)

	go c.WritePump()
	go c.ReadPump()
}

// reads messages from the webSocket connection to the hub for processing
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	c.conn.SetReadLimit(c.hub.MaxMessageSize())
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				logger.Warn("websocket frame exceeds read limit",
					"client_id", c.ID,
					"limit", c.hub.MaxMessageSize(),
				)
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
				logger.Warn("websocket error",
					"client_id", c.ID,
					"error", err,
				)
			}

			return
		}

		// parse the message
		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil || msg.Type == "" {
			if err == nil {
				err = ErrInvalidMessage
			}

			logger.Debug("failed to unmarshal message",
				"client_id", c.ID,
				"error", err,
			)

			c.SendError(apperrors.CodeBadRequest, "invalid message format", err.Error())
			continue
		}

		msg.ClientID = c.ID
		msg.Timestamp = time.Now()

		// forward to hub for processing
		c.hub.dispatch(&msg)
	}
}

// writes messages from the hub to the webSocket connection for sending to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing

			if !ok {
				// hub closed the channel
				if c.Overflowed() {
					if notice := bufferOverflowNotice(); notice != nil {
						c.conn.WriteMessage(websocket.TextMessage, notice) //nolint:errcheck,gosec // G104: best effort notice
					}
				}

				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck,gosec // G104: close message
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			w.Write(message) //nolint:errcheck,gosec // G104: websocket write

			// add queued messages to the current webSocket message, one per line
			n := len(c.send)

			for range n {
				queued, ok := <-c.send
				if !ok {
					break
				}

				w.Write([]byte{'\n'}) //nolint:errcheck,gosec // G104: websocket write
				w.Write(queued)       //nolint:errcheck,gosec // G104: websocket write
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket ping timing

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sends a message to the client
func (c *Client) Send(msg *Message) error {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return c.sendBytes(messageBytes)
}

// queues an encoded message. a client whose buffer is full is closed;
// the write pump tells it why before sending the close frame
func (c *Client) sendBytes(messageBytes []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- messageBytes:
		return nil
	default:
		c.overflowed = true
		c.closed = true
		close(c.send)
		return ErrConnectionClosed
	}
}

// builds the notice written by the write pump to a client dropped for overflow
func bufferOverflowNotice() []byte {
	errorMsg, err := NewMessage(TypeError, apperrors.ErrorResponse{
		Error:   apperrors.CodeBufferOverflow,
		Message: "message buffer full, connection will be closed",
		Details: "too many messages queued, please reconnect",
	})
	if err != nil {
		return nil
	}

	errorBytes, err := json.Marshal(errorMsg)
	if err != nil {
		return nil
	}

	return errorBytes
}

// reports whether the client was closed because its buffer filled up
func (c *Client) Overflowed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.overflowed
}

// sends an error message to the client
func (c *Client) SendError(code, message, details string) {
	errorMsg, err := NewMessage(TypeError, apperrors.ErrorResponse{
		Error:   code,
		Message: message,
		Details: sanitizeErrorString(details),
	})
	if err != nil {
		logger.ErrorErr(err, "failed to create error message",
			"client_id", c.ID,
			"error_code", code,
		)
		return
	}

	c.Send(errorMsg) //nolint:errcheck,gosec // G104: best effort error notification
}

// closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// checks if the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}
