package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// creates the app for the chat server at endpoint. token is the
// pseudonymous identity the client registers with
func NewApp(endpoint, token string) *Model {
	client := NewWSClient(endpoint, token)

	return &Model{
		state:   StateWelcome,
		welcome: NewWelcome(client.endpoint),
		chat:    NewChatModel(client),
		client:  client,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.client.Close()
			return m, tea.Quit
		}

		// any key dismisses an error
		if m.err != nil {
			m.err = nil
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chat, _ = m.chat.Update(msg)
		return m, nil

	case ErrorMsg:
		m.err = msg.err
		return m, nil

	case JoinMsg:
		m.state = StateConnecting
		return m, tea.Batch(m.chat.Init(), m.client.ConnectCmd())

	case WSConnectErrorMsg:
		m.state = StateWelcome
		m.err = msg.err
		return m, nil

	case WSConnectedMsg:
		m.state = StateChat
		return m, m.client.WaitForEvent()

	case WSEventMsg:
		m.chat, _ = m.chat.Update(msg)
		return m, m.client.WaitForEvent()

	case WSClosedMsg:
		m.state = StateWelcome
		m.client = NewWSClient(m.client.endpoint, m.client.token)
		m.chat = NewChatModel(m.client)

		if m.width > 0 {
			m.chat.resize(m.width, m.height)
		}

		m.err = fmt.Errorf("disconnected from server")
		return m, nil
	}

	switch m.state {
	case StateWelcome:
		var cmd tea.Cmd
		m.welcome, cmd = m.welcome.Update(msg)
		return m, cmd

	case StateConnecting, StateChat:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m *Model) View() string {
	if m.err != nil {
		return errorView(m.err)
	}

	switch m.state {
	case StateWelcome:
		return m.welcome.View()

	case StateConnecting, StateChat:
		return m.chat.View()

	default:
		return "Unknown state"
	}
}

func errorView(err error) string {
	return fmt.Sprintf("\n  Error: %v\n\n  Press any key to continue, Ctrl+C to exit\n", err)
}
