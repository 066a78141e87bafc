package tui

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"codeberg.org/anonchat/server/internal/history"
)

const (
	typeRegister       = "register"
	typeChatMessage    = "chat_message"
	typeTyping         = "typing"
	typeInit           = "init"
	typeSystemMessage  = "system_message"
	typeUsersOnline    = "users_online"
	typeUserTyping     = "user_typing"
	typeError          = "error"
	typeServerShutdown = "server_shutdown"
)

const (
	defaultEndpoint = "ws://localhost:3000/api/v1/ws"
	eventBufferSize = 64
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
)

var errNotConnected = errors.New("not connected")

const helpMarkdown = `# anonchat

You are **Anonymous N**. Your number survives reconnects for a few minutes.

| key | action |
|---|---|
| enter | send message |
| ctrl+h | toggle this help |
| pgup / pgdown | scroll history |
| ctrl+c | leave |

Messages are not stored anywhere but in the server's memory.
`

// renders one chat event as a single line
func formatEvent(event history.ChatEvent, me int) string {
	author := fmt.Sprintf("Anonymous %d", event.AnonymousNumber)
	if event.AnonymousNumber == me {
		author += " (you)"
	}

	var body string

	switch event.Type {
	case history.KindImage:
		body = "[photo]"
		if event.Caption != "" {
			body += " " + event.Caption
		}
	case history.KindReply:
		body = "↪ " + event.Text
	default:
		body = event.Text
	}

	return fmt.Sprintf("%s %s: %s",
		timestampStyle.Render(event.Timestamp),
		authorStyle.Render(author),
		body,
	)
}

// renders the online list, marking the local participant
func formatOnline(online []int, me int) string {
	parts := make([]string, len(online))

	for i, n := range online {
		parts[i] = "#" + strconv.Itoa(n)
		if n == me {
			parts[i] += "*"
		}
	}

	return fmt.Sprintf("online (%d): %s", len(online), strings.Join(parts, " "))
}

// renders the typing indicator line, or an empty string
func formatTyping(typing map[int]bool) string {
	numbers := make([]int, 0, len(typing))

	for n, on := range typing {
		if on {
			numbers = append(numbers, n)
		}
	}

	if len(numbers) == 0 {
		return ""
	}

	slices.Sort(numbers)

	names := make([]string, len(numbers))
	for i, n := range numbers {
		names[i] = fmt.Sprintf("Anonymous %d", n)
	}

	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}

	return fmt.Sprintf("%s %s typing...", strings.Join(names, ", "), verb)
}
