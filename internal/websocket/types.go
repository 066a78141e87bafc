package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// inbound message types
const (
	// binds the connection to a pseudonymous token
	TypeRegister = "register"

	// is sent when a participant posts a text, image or reply
	TypeChatMessage = "chat_message"

	// is sent when a participant posts a photo
	TypeChatPhoto = "chat_photo"

	// is sent when a participant starts or stops typing
	TypeTyping = "typing"

	// is sent by clients to keep the connection alive
	TypePing = "ping"
)

// outbound message types owned by the transport
const (
	// is sent when an inbound message cannot be processed
	TypeError = "error"

	// is sent by server in response to ping
	TypePong = "pong"

	// is sent by server before shutdown
	TypeServerShutdown = "server_shutdown"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// outbound messages queued per client before it is dropped
	sendBufferSize = 256

	// DefaultMaxMessageSize is the largest inbound frame accepted (5 MB, enough for an inline photo)
	DefaultMaxMessageSize int64 = 5 * 1024 * 1024
)

// hub constants
const (
	// timer callbacks and queries waiting for the event loop
	taskQueueSize = 64

	// time given to clients to read server_shutdown before their sockets close
	defaultShutdownDelay = 500 * time.Millisecond
)

// errors
var (
	ErrInvalidMessage   = errors.New("invalid message format")
	ErrConnectionClosed = errors.New("connection closed")
	ErrHubStopped       = errors.New("hub stopped")
	ErrMissingToken     = errors.New("register requires a token")
)

// represents a websocket message with typed payload
type Message struct {
	Type      string          `json:"type"`
	ClientID  string          `json:"-"` // Internal only, not sent to clients
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// marks the end of the client's stream, never decoded from the wire
	disconnect bool
}

// contains the pseudonymous token of a registering client
type RegisterPayload struct {
	Token string `json:"token"`
}

// contains a typing indicator
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// contains information about server shutdown
type ServerShutdownPayload struct {
	Reason string `json:"reason"`
}

// represents a websocket client connection
type Client struct {
	// unique identifier for this connection
	ID string

	// remote address of the peer, for logging
	RemoteAddr string

	// websocket connection
	conn *websocket.Conn

	// hub reference for message dispatch
	hub *Hub

	// buffered channel of outbound messages
	send chan []byte

	// mutex for thread-safe operations
	mu sync.RWMutex

	// flag indicating if client is closed
	closed bool

	// set when the client was dropped for not draining its send buffer
	overflowed bool
}

// maintains the set of active clients and serialises every chat event
// through a single loop
type Hub struct {
	// connected clients by client ID
	clients map[string]*Client

	// register requests from clients
	Register chan *Client

	// inbound messages read from clients, followed by each client's
	// disconnect so it is handled after everything the client sent
	Inbound chan *Message

	// closures run on the loop (timer callbacks, queries)
	tasks chan func()

	// mutex for thread-safe access to clients and handlers
	mu sync.RWMutex

	// message handlers for different message types
	handlers map[string]MessageHandler

	// largest frame a client may send
	maxMessageSize int64

	// delay between the shutdown notice and closing sockets
	shutdownDelay time.Duration

	// channel to signal shutdown
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// closed once Run has returned
	done chan struct{}

	// sequence number for broadcast ordering
	sequence uint64

	// callbacks run on the loop
	onClientRegistered func(client *Client)
	onClientDisconnect func(client *Client)
}

// processes a specific message type. handlers run on the hub loop
type MessageHandler func(hub *Hub, client *Client, msg *Message) error
