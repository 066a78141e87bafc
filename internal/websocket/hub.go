package websocket

import (
	"context"
	"encoding/json"
	"time"

	apperrors "codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/logger"
)

// creates a hub. maxMessageSize <= 0 selects DefaultMaxMessageSize
func NewHub(maxMessageSize int64) *Hub {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}

	return &Hub{
		clients:        make(map[string]*Client),
		Register:       make(chan *Client),
		Inbound:        make(chan *Message, 256),
		tasks:          make(chan func(), taskQueueSize),
		handlers:       make(map[string]MessageHandler),
		maxMessageSize: maxMessageSize,
		shutdownDelay:  defaultShutdownDelay,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// registers a handler for a specific message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[messageType] = handler
}

// sets callback to be called on the loop after a client is registered
func (h *Hub) OnClientRegistered(callback func(client *Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClientRegistered = callback
}

// sets callback to be called on the loop after a client disconnects
func (h *Hub) OnClientDisconnect(callback func(client *Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onClientDisconnect = callback
}

// starts the hub's main loop. every connect, disconnect, inbound message
// and queued task is handled to completion before the next one starts.
// a client's disconnect travels on Inbound so it never overtakes its messages
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case message := <-h.Inbound:
			if message.disconnect {
				h.unregisterClient(message.ClientID)
				continue
			}

			h.handleMessage(message)

		case task := <-h.tasks:
			task()

		case <-h.shutdown:
			h.closeAllConnections()
			return
		}
	}
}

// queues fn to run on the loop. safe to call from any goroutine, including
// timer callbacks. dropped once the hub has stopped
func (h *Hub) Enqueue(fn func()) {
	select {
	case h.tasks <- fn:
	case <-h.done:
	}
}

// runs fn on the loop and waits for it to finish
func (h *Hub) Query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})

	select {
	case h.tasks <- func() {
		defer close(finished)
		fn()
	}:
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	callback := h.onClientRegistered
	h.mu.Unlock()

	logger.Info("client connected",
		"client_id", client.ID,
		"remote_addr", client.RemoteAddr,
	)

	if callback != nil {
		callback(client)
	}
}

// removes a client from the hub
func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()

	// capture callback reference under lock
	callback := h.onClientDisconnect

	client, exists := h.clients[clientID]
	if !exists {
		h.mu.Unlock()
		return
	}

	delete(h.clients, clientID)
	h.mu.Unlock()

	client.Close()

	logger.Info("client disconnected",
		"client_id", client.ID,
	)

	if callback != nil {
		callback(client)
	}
}

// processes an incoming message
func (h *Hub) handleMessage(msg *Message) {
	h.mu.RLock()
	sender, exists := h.clients[msg.ClientID]
	handler, handled := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !exists {
		logger.Debug("sender client not found for message",
			"client_id", msg.ClientID,
			"message_type", msg.Type,
		)
		return
	}

	if !handled {
		logger.Warn("unhandled message type received",
			"message_type", msg.Type,
			"client_id", sender.ID,
		)

		sender.SendError(apperrors.CodeBadRequest, "unsupported message type", "message type not recognized")
		return
	}

	if err := handler(h, sender, msg); err != nil {
		logger.ErrorErr(err, "handler error",
			"message_type", msg.Type,
			"client_id", sender.ID,
		)

		sender.SendError(apperrors.CodeValidationError, "failed to process message", err.Error())
	}
}

// sends an event to a single client
func (h *Hub) Unicast(clientID, event string, payload any) {
	h.mu.RLock()
	client, exists := h.clients[clientID]
	h.mu.RUnlock()

	if !exists {
		logger.Debug("unicast to unknown client dropped",
			"client_id", clientID,
			"message_type", event,
		)
		return
	}

	msg, err := NewMessage(event, payload)
	if err != nil {
		logger.ErrorErr(err, "failed to create message",
			"client_id", clientID,
			"message_type", event,
		)
		return
	}

	if err := client.Send(msg); err != nil {
		logger.ErrorErr(err, "failed to send message to client",
			"client_id", clientID,
			"message_type", event,
		)
	}
}

// sends an event to every connected client except excludeClientID
func (h *Hub) Broadcast(event string, payload any, excludeClientID string) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		logger.ErrorErr(err, "failed to create broadcast message",
			"message_type", event,
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// assign sequence number to message
	h.sequence++
	msg.Sequence = h.sequence

	// marshal once, images can be large
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		logger.ErrorErr(err, "failed to marshal broadcast message",
			"message_type", event,
		)
		return
	}

	for clientID, client := range h.clients {
		if clientID == excludeClientID {
			continue
		}

		if err := client.sendBytes(messageBytes); err != nil {
			logger.ErrorErr(err, "failed to send message to client",
				"client_id", clientID,
				"message_type", event,
			)
		}
	}
}

// returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// returns the largest inbound frame clients may send
func (h *Hub) MaxMessageSize() int64 {
	return h.maxMessageSize
}

// stops the loop after notifying and closing every client
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdown)
	})
}

// closed once the loop has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// hands a client over to the loop, unless the loop is gone
func (h *Hub) register(client *Client) {
	select {
	case h.Register <- client:
	case <-h.done:
		client.Close()
	}
}

// queues the client's disconnect behind the messages it already sent
func (h *Hub) unregister(client *Client) {
	h.dispatch(&Message{ClientID: client.ID, disconnect: true})
}

func (h *Hub) dispatch(msg *Message) {
	select {
	case h.Inbound <- msg:
	case <-h.done:
	}
}

func (h *Hub) closeAllConnections() {
	logger.Info("notifying clients of server shutdown")

	shutdownMsg, err := NewMessage(TypeServerShutdown, ServerShutdownPayload{
		Reason: "server is shutting down",
	})
	if err != nil {
		logger.ErrorErr(err, "failed to create shutdown message")
	}

	h.mu.RLock()

	// send shutdown notification to all clients first
	for _, client := range h.clients {
		if shutdownMsg == nil {
			break
		}

		if err := client.Send(shutdownMsg); err != nil {
			logger.ErrorErr(err, "failed to send shutdown notification",
				"client_id", client.ID,
			)
		}
	}

	h.mu.RUnlock()

	// give clients time to receive the shutdown message
	time.Sleep(h.shutdownDelay)

	h.mu.Lock()
	defer h.mu.Unlock()

	logger.Info("closing all websocket connections", "count", len(h.clients))

	for clientID, client := range h.clients {
		client.Close()
		logger.Debug("closed client",
			"client_id", clientID,
		)
	}

	h.clients = make(map[string]*Client)
}
