package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/anonchat/server/internal/history"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/presence"
	"codeberg.org/anonchat/server/internal/session"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(0)
	hub.shutdownDelay = 0

	go hub.Run()
	t.Cleanup(hub.Shutdown)

	return hub
}

func newTestClient(hub *Hub, id string) *Client {
	return &Client{
		ID:   id,
		hub:  hub,
		send: make(chan []byte, 256),
	}
}

// waits for the next queued message of client and decodes it
func nextMessage(t *testing.T, client *Client) Message {
	t.Helper()

	select {
	case raw, ok := <-client.send:
		require.True(t, ok, "send channel closed")

		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))

		return msg
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", client.ID)
		return Message{}
	}
}

func assertNoMessage(t *testing.T, client *Client) {
	t.Helper()

	select {
	case raw := <-client.send:
		t.Errorf("client %s should not have received %s", client.ID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

// blocks until the loop has processed everything queued before the call.
// Inbound is buffered and a query could overtake it, so drain it first
func waitForLoop(t *testing.T, hub *Hub) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(hub.Inbound) == 0
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, hub.Query(ctx, func() {}))
}

func TestHubCreation(t *testing.T) {
	hub := NewHub(0)
	require.NotNil(t, hub)
	assert.NotNil(t, hub.Register)
	assert.NotNil(t, hub.Inbound)
	assert.Equal(t, DefaultMaxMessageSize, hub.MaxMessageSize())
	assert.Equal(t, int64(1024), NewHub(1024).MaxMessageSize())
}

func TestHubRegisterAndUnregisterClient(t *testing.T) {
	hub := newTestHub(t)

	var mu sync.Mutex
	var registered, disconnected []string

	hub.OnClientRegistered(func(c *Client) {
		mu.Lock()
		registered = append(registered, c.ID)
		mu.Unlock()
	})
	hub.OnClientDisconnect(func(c *Client) {
		mu.Lock()
		disconnected = append(disconnected, c.ID)
		mu.Unlock()
	})

	client := newTestClient(hub, "client-1")

	hub.Register <- client
	waitForLoop(t, hub)
	assert.Equal(t, 1, hub.ClientCount())

	hub.unregister(client)
	hub.unregister(client)
	waitForLoop(t, hub)

	assert.Equal(t, 0, hub.ClientCount())
	assert.True(t, client.IsClosed())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"client-1"}, registered)
	assert.Equal(t, []string{"client-1"}, disconnected, "duplicate unregister fires once")
}

func TestHubBroadcastExcludesAndSequences(t *testing.T) {
	hub := newTestHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(hub, string(rune('a'+i)))
		hub.Register <- clients[i]
	}
	waitForLoop(t, hub)

	hub.Enqueue(func() {
		hub.Broadcast("user_typing", map[string]any{"anonymousNumber": 1}, "a")
		hub.Broadcast("users_online", []int{1, 2, 3}, "")
	})
	waitForLoop(t, hub)

	first := nextMessage(t, clients[0])
	assert.Equal(t, "users_online", first.Type)

	for _, c := range clients[1:] {
		typing := nextMessage(t, c)
		online := nextMessage(t, c)

		assert.Equal(t, "user_typing", typing.Type)
		assert.Equal(t, "users_online", online.Type)
		assert.Less(t, typing.Sequence, online.Sequence)
		assert.Equal(t, first.Sequence, online.Sequence)
		assert.JSONEq(t, `[1,2,3]`, string(online.Payload))
	}
}

func TestHubUnicast(t *testing.T) {
	hub := newTestHub(t)

	a := newTestClient(hub, "a")
	b := newTestClient(hub, "b")
	hub.Register <- a
	hub.Register <- b
	waitForLoop(t, hub)

	hub.Enqueue(func() {
		hub.Unicast("a", "init", map[string]any{"anonymousNumber": 1})
		hub.Unicast("missing", "init", nil)
	})
	waitForLoop(t, hub)

	msg := nextMessage(t, a)
	assert.Equal(t, "init", msg.Type)
	assert.JSONEq(t, `{"anonymousNumber":1}`, string(msg.Payload))
	assertNoMessage(t, b)
}

func TestHubMessageHandler(t *testing.T) {
	hub := newTestHub(t)

	handled := make(chan string, 1)
	hub.RegisterHandler("test_message", func(_ *Hub, client *Client, msg *Message) error {
		handled <- client.ID + ":" + string(msg.Payload)
		return nil
	})

	client := newTestClient(hub, "client-1")
	hub.Register <- client
	waitForLoop(t, hub)

	msg, err := NewMessage("test_message", map[string]string{"test": "data"})
	require.NoError(t, err)
	msg.ClientID = "client-1"

	hub.Inbound <- msg

	select {
	case got := <-handled:
		assert.Equal(t, `client-1:{"test":"data"}`, got)
	case <-time.After(time.Second):
		t.Fatal("handler should have been called")
	}
}

func TestHubUnknownMessageType(t *testing.T) {
	hub := newTestHub(t)

	client := newTestClient(hub, "client-1")
	hub.Register <- client
	waitForLoop(t, hub)

	hub.Inbound <- &Message{Type: "teleport", ClientID: "client-1"}

	msg := nextMessage(t, client)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Payload), "bad_request")
}

func TestHubMessageFromUnknownClientIsDropped(t *testing.T) {
	hub := newTestHub(t)

	called := false
	hub.RegisterHandler(TypePing, func(_ *Hub, _ *Client, _ *Message) error {
		called = true
		return nil
	})

	hub.Inbound <- &Message{Type: TypePing, ClientID: "ghost"}
	waitForLoop(t, hub)

	// the handler only ever runs on the loop, so reading after sync is safe
	assert.False(t, called)
}

func TestHubQueryAfterShutdown(t *testing.T) {
	hub := NewHub(0)
	hub.shutdownDelay = 0
	go hub.Run()

	hub.Shutdown()
	hub.Shutdown()

	<-hub.Done()

	err := hub.Query(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrHubStopped)

	// must not block once the loop is gone
	hub.Enqueue(func() {})
}

func TestHubQueryHonoursContext(t *testing.T) {
	// never started, nothing drains the queue
	hub := NewHub(0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := hub.Query(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHubShutdownNotifiesClients(t *testing.T) {
	hub := NewHub(0)
	hub.shutdownDelay = 0
	go hub.Run()

	client := newTestClient(hub, "client-1")
	hub.Register <- client
	waitForLoop(t, hub)

	hub.Shutdown()
	<-hub.Done()

	msg := nextMessage(t, client)
	assert.Equal(t, TypeServerShutdown, msg.Type)
	assert.True(t, client.IsClosed())
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubConcurrentBroadcasts(t *testing.T) {
	hub := newTestHub(t)

	numClients := 10
	numMessages := 20

	clients := make([]*Client, numClients)
	for i := range numClients {
		clients[i] = newTestClient(hub, string(rune('a'+i)))
		hub.Register <- clients[i]
	}
	waitForLoop(t, hub)

	var wg sync.WaitGroup
	for range numMessages {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Enqueue(func() {
				hub.Broadcast("chat_message", map[string]string{"text": "hi"}, "a")
			})
		}()
	}

	wg.Wait()
	waitForLoop(t, hub)

	assert.Empty(t, clients[0].send)

	for i := 1; i < numClients; i++ {
		var last uint64
		for range numMessages {
			msg := nextMessage(t, clients[i])
			assert.Greater(t, msg.Sequence, last, "client %d sees broadcasts in order", i)
			last = msg.Sequence
		}
	}
}

// drives a real coordinator through the hub with in-memory clients
func TestHubChatFlow(t *testing.T) {
	hub := newTestHub(t)

	registry := identity.NewRegistry()
	tracker := presence.NewTracker(registry, time.Minute, func(e presence.Expiry) {})
	coord := session.NewCoordinator(registry, history.NewBuffer(100), tracker, hub, session.DefaultOptions())
	Attach(hub, coord)

	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.Register <- alice
	hub.Register <- bob

	send := func(c *Client, msgType string, payload any) {
		msg, err := NewMessage(msgType, payload)
		require.NoError(t, err)
		msg.ClientID = c.ID
		hub.Inbound <- msg
	}

	send(alice, TypeRegister, RegisterPayload{Token: "abc"})

	initMsg := nextMessage(t, alice)
	assert.Equal(t, session.EventInit, initMsg.Type)
	assert.JSONEq(t, `{"anonymousNumber":1,"messages":[]}`, string(initMsg.Payload))

	assert.Equal(t, session.EventSystemMessage, nextMessage(t, alice).Type)
	assert.JSONEq(t, `[1]`, string(nextMessage(t, alice).Payload))

	assert.Equal(t, session.EventSystemMessage, nextMessage(t, bob).Type)
	assert.Equal(t, session.EventUsersOnline, nextMessage(t, bob).Type)

	send(alice, TypeChatMessage, session.ChatRequest{Text: "hi"})

	for _, c := range []*Client{alice, bob} {
		msg := nextMessage(t, c)
		require.Equal(t, session.EventChatMessage, msg.Type)

		var event history.ChatEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, 1, event.AnonymousNumber)
		assert.Equal(t, "hi", event.Text)
		assert.Nil(t, event.ReplyTo)
		assert.Contains(t, string(msg.Payload), `"replyTo":null`)
	}

	// bob never registered, his chat and typing are dropped
	send(bob, TypeChatMessage, session.ChatRequest{Text: "sneaky"})
	send(bob, TypeTyping, TypingPayload{IsTyping: true})
	waitForLoop(t, hub)
	assertNoMessage(t, alice)

	send(alice, TypeTyping, TypingPayload{IsTyping: true})
	typing := nextMessage(t, bob)
	assert.Equal(t, session.EventUserTyping, typing.Type)
	assert.JSONEq(t, `{"anonymousNumber":1,"isTyping":true}`, string(typing.Payload))
	assertNoMessage(t, alice)

	send(alice, TypeChatPhoto, session.ChatRequest{Image: "data:image/png;base64,AAAA", Caption: "cat"})
	photo := nextMessage(t, bob)
	assert.Contains(t, string(photo.Payload), `"type":"image"`)

	// malformed register
	send(bob, TypeRegister, RegisterPayload{})
	errMsg := nextMessage(t, bob)
	assert.Equal(t, TypeError, errMsg.Type)

	send(bob, TypePing, nil)
	assert.Equal(t, TypePong, nextMessage(t, bob).Type)

	var stats session.Stats
	require.NoError(t, hub.Query(context.Background(), func() { stats = coord.Stats() }))
	assert.Equal(t, []int{1}, stats.Online)
	assert.Equal(t, 2, stats.HistorySize)
}

// a disconnect must not overtake messages the client sent before it
func TestHubDisconnectAfterQueuedMessages(t *testing.T) {
	hub := newTestHub(t)

	registry := identity.NewRegistry()
	tracker := presence.NewTracker(registry, time.Minute, func(e presence.Expiry) {})
	coord := session.NewCoordinator(registry, history.NewBuffer(200), tracker, hub, session.DefaultOptions())
	Attach(hub, coord)
	t.Cleanup(coord.Close)

	const rounds = 20
	const messages = 100

	for round := range rounds {
		client := newTestClient(hub, fmt.Sprintf("client-%d", round))
		hub.Register <- client

		register, err := NewMessage(TypeRegister, RegisterPayload{Token: fmt.Sprintf("token-%d", round)})
		require.NoError(t, err)
		register.ClientID = client.ID
		hub.dispatch(register)

		for i := range messages {
			msg, err := NewMessage(TypeChatMessage, session.ChatRequest{Text: fmt.Sprintf("message %d", i)})
			require.NoError(t, err)
			msg.ClientID = client.ID
			hub.dispatch(msg)
		}

		hub.unregister(client)
		waitForLoop(t, hub)

		var total int
		require.NoError(t, hub.Query(context.Background(), func() {
			_, total = coord.History(0, 0)
		}))

		assert.Equal(t, min((round+1)*messages, 200), total, "round %d", round)
		assert.True(t, client.IsClosed())
	}

	assert.Equal(t, 0, hub.ClientCount())
}

// a peer that never reads is dropped without taking the loop down
func TestHubDropsClientThatStopsReading(t *testing.T) {
	hub := newTestHub(t)

	accepted := make(chan *Client, 1)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := NewClient(GenerateClientID(), r.RemoteAddr, conn, hub)
		client.Start()
		accepted <- client
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck

	var slow *Client
	select {
	case slow = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("connection was not accepted")
	}

	image := "data:image/png;base64," + strings.Repeat("A", 256*1024)

	for range 400 {
		hub.Enqueue(func() {
			hub.Broadcast("chat_message", map[string]string{"type": "image", "image": image}, "")
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, hub.Query(ctx, func() {}))

	assert.True(t, slow.IsClosed())
	assert.True(t, slow.Overflowed())

	// still serving
	require.NoError(t, hub.Query(ctx, func() {}))
}
