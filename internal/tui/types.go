package tui

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/gorilla/websocket"
)

// represents the current state of the TUI
type AppState int

const (
	StateWelcome AppState = iota
	StateConnecting
	StateChat
)

// main TUI application model
type Model struct {
	state   AppState
	width   int
	height  int
	err     error
	welcome *Welcome
	chat    *ChatModel
	client  *WSClient
}

// sent when an error occurs
type ErrorMsg struct {
	err error
}

// sent to start connecting to the server
type JoinMsg struct{}

// sent once the connection is up and register was sent
type WSConnectedMsg struct{}

// sent when the connection could not be established
type WSConnectErrorMsg struct {
	err error
}

// carries one server event to the chat model
type WSEventMsg struct {
	event wsMessage
}

// sent when the server closed the connection
type WSClosedMsg struct{}

// chat screen
type ChatModel struct {
	input           textinput.Model
	viewport        viewport.Model
	spinner         spinner.Model
	glamourRenderer *glamour.TermRenderer
	width           int
	height          int
	ready           bool
	registered      bool
	showHelp        bool
	sentTyping      bool
	myNumber        int
	online          []int
	typing          map[int]bool
	lines           []string
	client          *WSClient
}

// welcome screen model
type Welcome struct {
	endpoint string
	input    string
	commands []Command
}

// represents an available TUI command
type Command struct {
	Name        string
	Description string
}

// wire envelope, as sent by the server
type wsMessage struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type initPayload struct {
	AnonymousNumber int               `json:"anonymousNumber"`
	Messages        []json.RawMessage `json:"messages"`
}

type systemMessagePayload struct {
	Text string `json:"text"`
}

type userTypingPayload struct {
	AnonymousNumber int  `json:"anonymousNumber"`
	IsTyping        bool `json:"isTyping"`
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type shutdownPayload struct {
	Reason string `json:"reason"`
}

// webSocket connection to the chat server
type WSClient struct {
	endpoint  string
	token     string
	conn      *websocket.Conn
	mu        sync.Mutex
	connected bool
	events    chan wsMessage

	// closed by Close, releases the pumps
	done      chan struct{}
	closeOnce sync.Once

	// closed when the read pump has returned
	stopped chan struct{}
}
