package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// creates a new webSocket client for endpoint, registering under token
func NewWSClient(endpoint, token string) *WSClient {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &WSClient{
		endpoint: endpoint,
		token:    token,
		events:   make(chan wsMessage, eventBufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// establishes the WebSocket connection and registers the token
func (c *WSClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn

	// set up ping/pong handlers to keep the connection alive
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := c.writeLocked(typeRegister, map[string]string{"token": c.token}); err != nil {
		conn.Close() //nolint:errcheck,gosec // connection is unusable
		return fmt.Errorf("failed to register: %w", err)
	}

	c.connected = true

	go c.readPump()
	go c.pingPump()

	return nil
}

// sends periodic pings to keep the connection alive
func (c *WSClient) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()

		if !c.connected || c.conn == nil {
			c.mu.Unlock()
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // ping timing
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.mu.Unlock()

		if err != nil {
			return
		}
	}
}

// reads frames and forwards every message they carry to the events channel
func (c *WSClient) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck,gosec // defer cleanup
		}
		c.mu.Unlock()

		close(c.events)
		close(c.stopped)
	}()

	for {
		// reset read deadline on each successful read
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // read timing

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		for _, msg := range decodeFrame(data) {
			select {
			case c.events <- msg:
			case <-c.done:
				return
			}
		}
	}
}

// splits a frame into messages. the server batches queued messages one per line
func decodeFrame(data []byte) []wsMessage {
	var out []wsMessage

	for line := range bytes.SplitSeq(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg wsMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		out = append(out, msg)
	}

	return out
}

// sends a message of msgType with payload
func (c *WSClient) Send(msgType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return errNotConnected
	}

	return c.writeLocked(msgType, payload)
}

func (c *WSClient) writeLocked(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // write timing

	return c.conn.WriteJSON(wsMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   raw,
	})
}

// returns whether the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// closes the webSocket connection and stops the pumps
func (c *WSClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close() //nolint:errcheck,gosec // best effort
	}

	c.connected = false
}

// returns a tea.Cmd that connects to the webSocket server
func (c *WSClient) ConnectCmd() tea.Cmd {
	return func() tea.Msg {
		if err := c.Connect(); err != nil {
			return WSConnectErrorMsg{err: err}
		}

		return WSConnectedMsg{}
	}
}

// returns a tea.Cmd that waits for the next server event
func (c *WSClient) WaitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-c.events
		if !ok {
			return WSClosedMsg{}
		}

		return WSEventMsg{event: msg}
	}
}
