package websocket

import (
	"fmt"
	"strings"

	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/session"
)

// handles register messages
func RegisterHandler(coord *session.Coordinator) MessageHandler {
	return func(_ *Hub, client *Client, msg *Message) error {
		var payload RegisterPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to parse register: %w", err)
		}

		token := strings.TrimSpace(payload.Token)
		if token == "" {
			return ErrMissingToken
		}

		coord.Register(client.ID, token)

		return nil
	}
}

// handles chat messages (text, image or reply)
func ChatHandler(coord *session.Coordinator) MessageHandler {
	return func(_ *Hub, client *Client, msg *Message) error {
		var req session.ChatRequest
		if err := msg.UnmarshalPayload(&req); err != nil {
			return fmt.Errorf("failed to parse chat message: %w", err)
		}

		coord.Chat(client.ID, req)

		return nil
	}
}

// handles photo messages, which are chat messages forced to the image kind
func PhotoHandler(coord *session.Coordinator) MessageHandler {
	return func(_ *Hub, client *Client, msg *Message) error {
		var req session.ChatRequest
		if err := msg.UnmarshalPayload(&req); err != nil {
			return fmt.Errorf("failed to parse chat photo: %w", err)
		}

		req.Type = history.KindImage

		coord.Chat(client.ID, req)

		return nil
	}
}

// handles typing indicators
func TypingHandler(coord *session.Coordinator) MessageHandler {
	return func(_ *Hub, client *Client, msg *Message) error {
		var payload TypingPayload
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to parse typing: %w", err)
		}

		coord.Typing(client.ID, payload.IsTyping)

		return nil
	}
}

// handles ping messages from clients (keep-alive)
func PingHandler() MessageHandler {
	return func(_ *Hub, client *Client, _ *Message) error {
		pongMsg, err := NewMessage(TypePong, nil)
		if err != nil {
			return err
		}

		client.Send(pongMsg) //nolint:errcheck,gosec // best-effort pong

		return nil
	}
}

// wires the coordinator into the hub: lifecycle callbacks and one handler
// per inbound message type
func Attach(hub *Hub, coord *session.Coordinator) {
	hub.OnClientRegistered(func(client *Client) {
		coord.Connect(client.ID)
	})

	hub.OnClientDisconnect(func(client *Client) {
		coord.Disconnect(client.ID)
	})

	hub.RegisterHandler(TypeRegister, RegisterHandler(coord))
	hub.RegisterHandler(TypeChatMessage, ChatHandler(coord))
	hub.RegisterHandler(TypeChatPhoto, PhotoHandler(coord))
	hub.RegisterHandler(TypeTyping, TypingHandler(coord))
	hub.RegisterHandler(TypePing, PingHandler())
}
