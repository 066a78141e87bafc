package chat

import (
	"codeberg.org/anonchat/server/api/rest/pagination"
	"codeberg.org/anonchat/server/internal/history"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HistoryResponse is a page of the rolling history, oldest first
type HistoryResponse struct {
	Messages   []history.ChatEvent `json:"messages"`
	Pagination pagination.Meta     `json:"pagination"`
}
