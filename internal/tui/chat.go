package tui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"codeberg.org/anonchat/server/internal/history"
)

const (
	// rows taken by header, typing line and input
	chromeHeight = 5

	// mirrors the server's default text cap
	inputCharLimit = 500
)

// returns a new chat screen bound to client
func NewChatModel(client *WSClient) *ChatModel {
	ti := textinput.New()
	ti.Placeholder = "say something..."
	ti.Focus()
	ti.CharLimit = inputCharLimit
	ti.Width = 80
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorLightGray)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorWhite)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPurple)

	return &ChatModel{
		input:   ti,
		spinner: s,
		typing:  make(map[int]bool),
		client:  client,
	}
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *ChatModel) Update(msg tea.Msg) (*ChatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			return m, m.submit()

		case "ctrl+h":
			m.showHelp = !m.showHelp
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case WSEventMsg:
		m.apply(msg.event)
		return m, nil

	case spinner.TickMsg:
		if m.registered {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd, m.typingCmd())

	return m, tea.Batch(cmds...)
}

// applies a server event to the local view of the room
func (m *ChatModel) apply(event wsMessage) {
	switch event.Type {
	case typeInit:
		var payload initPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}

		m.registered = true
		m.myNumber = payload.AnonymousNumber
		m.lines = m.lines[:0]

		for _, raw := range payload.Messages {
			var chat history.ChatEvent
			if err := json.Unmarshal(raw, &chat); err == nil {
				m.lines = append(m.lines, formatEvent(chat, m.myNumber))
			}
		}

		m.appendLine(infoStyle.Render(fmt.Sprintf("you are Anonymous %d", m.myNumber)))

	case typeSystemMessage:
		var payload systemMessagePayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			m.appendLine(systemStyle.Render(payload.Text))
		}

	case typeUsersOnline:
		var online []int
		if err := json.Unmarshal(event.Payload, &online); err == nil {
			m.online = online
		}

	case typeChatMessage:
		var chat history.ChatEvent
		if err := json.Unmarshal(event.Payload, &chat); err == nil {
			delete(m.typing, chat.AnonymousNumber)
			m.appendLine(formatEvent(chat, m.myNumber))
		}

	case typeUserTyping:
		var payload userTypingPayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			if payload.IsTyping {
				m.typing[payload.AnonymousNumber] = true
			} else {
				delete(m.typing, payload.AnonymousNumber)
			}
		}

	case typeError:
		var payload errorPayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			m.appendLine(errorStyle.Render(fmt.Sprintf("error: %s", payload.Message)))
		}

	case typeServerShutdown:
		var payload shutdownPayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			m.appendLine(errorStyle.Render(payload.Reason))
		}
	}
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line)

	if m.ready {
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

// sends the input as a chat message
func (m *ChatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.client == nil {
		return nil
	}

	m.input.SetValue("")
	m.sentTyping = false

	client := m.client

	return func() tea.Msg {
		if err := client.Send(typeChatMessage, map[string]string{"text": text}); err != nil {
			return ErrorMsg{err: err}
		}

		// best effort, the chat message already cleared the indicator locally for others
		client.Send(typeTyping, map[string]bool{"isTyping": false}) //nolint:errcheck,gosec

		return nil
	}
}

// sends a typing indicator when the input goes from empty to non-empty or back
func (m *ChatModel) typingCmd() tea.Cmd {
	typing := m.input.Value() != ""
	if typing == m.sentTyping || m.client == nil || !m.registered {
		return nil
	}

	m.sentTyping = typing
	client := m.client

	return func() tea.Msg {
		client.Send(typeTyping, map[string]bool{"isTyping": typing}) //nolint:errcheck,gosec // best effort
		return nil
	}
}

func (m *ChatModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-4, 10)

	vpHeight := max(height-chromeHeight, 3)

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}

	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		m.glamourRenderer = renderer
	}
}

func (m *ChatModel) View() string {
	if !m.registered {
		return fmt.Sprintf("\n  %s joining the chat...\n", m.spinner.View())
	}

	if m.showHelp {
		return m.helpView()
	}

	var b strings.Builder

	header := fmt.Sprintf("anonchat · Anonymous %d · %s", m.myNumber, formatOnline(m.online, m.myNumber))
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(strings.Join(m.lines, "\n"))
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render(formatTyping(m.typing)))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter to send · ctrl+h help · ctrl+c quit"))

	return b.String()
}

func (m *ChatModel) helpView() string {
	if m.glamourRenderer == nil {
		return helpMarkdown
	}

	out, err := m.glamourRenderer.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}

	return out
}
