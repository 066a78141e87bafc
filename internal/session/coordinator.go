// Package session turns connection lifecycle and message events into
// registry, history and presence updates plus outbound broadcasts.
//
// A Coordinator is not safe for concurrent use. The websocket hub drives it
// from its single event loop, which gives every broadcast a global order.
package session

import (
	"time"

	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/logger"
	"codeberg.org/anonchat/server/internal/presence"
)

type Coordinator struct {
	registry *identity.Registry
	history  *history.Buffer
	presence *presence.Tracker
	outbox   Outbox
	opts     Options
	conns    map[string]ConnState
	now      func() time.Time
	newID    func(time.Time) string
}

// wires the state owned by the event loop into a coordinator
func NewCoordinator(registry *identity.Registry, buffer *history.Buffer, tracker *presence.Tracker, outbox Outbox, opts Options) *Coordinator {
	defaults := DefaultOptions()

	if opts.InitHistory <= 0 {
		opts.InitHistory = defaults.InitHistory
	}

	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = defaults.MaxTextLength
	}

	if opts.MaxCaptionLength <= 0 {
		opts.MaxCaptionLength = defaults.MaxCaptionLength
	}

	if opts.Location == nil {
		opts.Location = defaults.Location
	}

	return &Coordinator{
		registry: registry,
		history:  buffer,
		presence: tracker,
		outbox:   outbox,
		opts:     opts,
		conns:    make(map[string]ConnState),
		now:      time.Now,
		newID:    newEventID,
	}
}

// a new transport connection, not yet bound to an identity
func (c *Coordinator) Connect(connID string) {
	c.conns[connID] = StateUnregistered
}

// binds connID to token and brings the participant up to date
func (c *Coordinator) Register(connID, token string) {
	state, ok := c.conns[connID]
	if !ok || state == StateClosed {
		logger.Debug("register on unknown connection dropped", "client_id", connID)
		return
	}

	// re-registering a connection under another token releases the old identity
	if prev, ok := c.registry.Lookup(connID); ok && prev.Token != token {
		c.markOffline(connID)
	}

	number, isNew := c.registry.RegisterOrRefresh(token, connID)
	if !isNew {
		c.presence.OnReconnect(number)
	}

	c.conns[connID] = StateRegistered

	logger.Info("participant registered",
		"client_id", connID,
		"anonymous_number", number,
		"new", isNew,
	)

	c.outbox.Unicast(connID, EventInit, InitPayload{
		AnonymousNumber: number,
		Messages:        c.history.Recent(c.opts.InitHistory),
	})

	if isNew {
		c.outbox.Broadcast(EventSystemMessage, SystemMessagePayload{Text: joinNotice(number)}, "")
	}

	c.broadcastOnline()
}

// appends a message from connID to history and broadcasts it to everyone
func (c *Coordinator) Chat(connID string, req ChatRequest) {
	sender, ok := c.resolve(connID)
	if !ok {
		return
	}

	event, ok := c.buildEvent(sender.Number, req)
	if !ok {
		logger.Debug("empty chat message dropped",
			"client_id", connID,
			"anonymous_number", sender.Number,
		)
		return
	}

	c.history.Append(event)
	c.outbox.Broadcast(EventChatMessage, event, "")
}

// relays a typing indicator to everyone except the typist
func (c *Coordinator) Typing(connID string, isTyping bool) {
	sender, ok := c.resolve(connID)
	if !ok {
		return
	}

	c.outbox.Broadcast(EventUserTyping, UserTypingPayload{
		AnonymousNumber: sender.Number,
		IsTyping:        isTyping,
	}, connID)
}

// closes connID; its identity goes offline and the grace timer is armed
func (c *Coordinator) Disconnect(connID string) {
	if _, ok := c.conns[connID]; !ok {
		return
	}

	delete(c.conns, connID)

	c.markOffline(connID)
}

// handles a fired grace timer
func (c *Coordinator) ExpireGrace(e presence.Expiry) {
	if !c.presence.Expire(e) {
		logger.Debug("stale grace timer ignored", "anonymous_number", e.Number)
		return
	}

	logger.Info("participant departed", "anonymous_number", e.Number)

	c.outbox.Broadcast(EventSystemMessage, SystemMessagePayload{Text: leaveNotice(e.Number)}, "")
	c.broadcastOnline()
}

// reports the lifecycle state of connID
func (c *Coordinator) State(connID string) ConnState {
	state, ok := c.conns[connID]
	if !ok {
		return StateClosed
	}

	return state
}

func (c *Coordinator) Stats() Stats {
	return Stats{
		Online:            c.presence.Online(),
		Identities:        c.registry.Len(),
		Connections:       len(c.conns),
		HistorySize:       c.history.Len(),
		HistoryCap:        c.history.Cap(),
		PendingDepartures: c.presence.Pending(),
	}
}

// returns up to limit messages, skipping the offset newest ones, oldest
// first, along with the number of messages held
func (c *Coordinator) History(offset, limit int) ([]history.ChatEvent, int) {
	total := c.history.Len()
	window := c.history.Recent(offset + limit)

	return window[:max(len(window)-offset, 0)], total
}

// stops pending grace timers, used on shutdown
func (c *Coordinator) Close() {
	c.presence.StopAll()
}

// finds the identity that sent an event on connID
func (c *Coordinator) resolve(connID string) (identity.Identity, bool) {
	if c.conns[connID] != StateRegistered {
		return identity.Identity{}, false
	}

	return c.registry.Lookup(connID)
}

func (c *Coordinator) markOffline(connID string) {
	id, ok := c.registry.MarkOffline(connID)
	if !ok {
		return
	}

	logger.Info("participant offline",
		"client_id", connID,
		"anonymous_number", id.Number,
		"grace_period", c.presence.GracePeriod().String(),
	)

	c.broadcastOnline()
	c.presence.OnDisconnect(id)
}

func (c *Coordinator) broadcastOnline() {
	c.outbox.Broadcast(EventUsersOnline, c.presence.Online(), "")
}
