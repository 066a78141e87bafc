package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/google/uuid"

	"codeberg.org/anonchat/server/internal/tui"
)

func main() {
	if !term.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "anonchat needs an interactive terminal")
		os.Exit(1)
	}

	token, err := loadToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading identity: %v\n", err)
		os.Exit(1)
	}

	app := tui.NewApp(os.Getenv("ANONCHAT_WS_ENDPOINT"), token)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("error running anonchat: %v\n", err)
		os.Exit(1)
	}
}

// returns the pseudonymous token, creating and storing one on first run so
// the same anonymous number comes back after a quick restart
func loadToken() (string, error) {
	if token := os.Getenv("ANONCHAT_TOKEN"); token != "" {
		return token, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return uuid.NewString(), nil //nolint:nilerr // no config dir, fall back to a throwaway identity
	}

	path := filepath.Join(dir, "anonchat", "token")

	if data, err := os.ReadFile(path); err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	token := uuid.NewString()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return token, nil
}
