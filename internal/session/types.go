package session

import (
	"time"

	"codeberg.org/anonchat/server/internal/history"
)

// outbound event names
const (
	// unicast to a connection right after it registers
	EventInit = "init"

	// join and departure notices
	EventSystemMessage = "system_message"

	// ascending list of online anonymous numbers
	EventUsersOnline = "users_online"

	// a chat message, echoed to the sender as well
	EventChatMessage = "chat_message"

	// typing indicator, relayed to everyone but the typist
	EventUserTyping = "user_typing"
)

// delivers outbound events. sends are fire-and-forget
type Outbox interface {
	Unicast(connID, event string, payload any)
	Broadcast(event string, payload any, excludeConnID string)
}

// lifecycle of a single connection
type ConnState int

const (
	StateUnregistered ConnState = iota
	StateRegistered
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// limits and formatting applied to incoming messages
type Options struct {
	InitHistory      int
	MaxTextLength    int
	MaxCaptionLength int
	Location         *time.Location
}

// sensible defaults matching the stock configuration
func DefaultOptions() Options {
	return Options{
		InitHistory:      50,
		MaxTextLength:    500,
		MaxCaptionLength: 200,
		Location:         time.Local,
	}
}

// payload of the init event
type InitPayload struct {
	AnonymousNumber int                 `json:"anonymousNumber"`
	Messages        []history.ChatEvent `json:"messages"`
}

// payload of system notices
type SystemMessagePayload struct {
	Text string `json:"text"`
}

// payload of typing indicators
type UserTypingPayload struct {
	AnonymousNumber int  `json:"anonymousNumber"`
	IsTyping        bool `json:"isTyping"`
}

// an incoming chat message as sent by a client
type ChatRequest struct {
	Type    string  `json:"type,omitempty"`
	Text    string  `json:"text,omitempty"`
	Image   string  `json:"image,omitempty"`
	Caption string  `json:"caption,omitempty"`
	ReplyTo *string `json:"replyTo,omitempty"`
}

// snapshot of the coordinator state
type Stats struct {
	Online            []int `json:"online"`
	Identities        int   `json:"identities"`
	Connections       int   `json:"connections"`
	HistorySize       int   `json:"history_size"`
	HistoryCap        int   `json:"history_cap"`
	PendingDepartures int   `json:"pending_departures"`
}
