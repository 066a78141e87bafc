package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"codeberg.org/anonchat/server/internal/history"
)

// generates "<unix millis>-<9 random chars>"
func newEventID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// cuts s to at most n runes
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}

// builds the history entry for req, or reports false when there is nothing to send
func (c *Coordinator) buildEvent(number int, req ChatRequest) (history.ChatEvent, bool) {
	text := truncate(req.Text, c.opts.MaxTextLength)
	caption := truncate(req.Caption, c.opts.MaxCaptionLength)

	kind := history.KindText

	switch {
	case req.Type == history.KindImage || req.Image != "":
		if req.Image == "" {
			return history.ChatEvent{}, false
		}
		kind = history.KindImage

	case strings.TrimSpace(text) == "":
		return history.ChatEvent{}, false

	case req.ReplyTo != nil:
		kind = history.KindReply
	}

	var replyTo *string
	if req.ReplyTo != nil {
		ref := *req.ReplyTo
		replyTo = &ref
	}

	now := c.now()

	return history.ChatEvent{
		ID:              c.newID(now),
		Type:            kind,
		AnonymousNumber: number,
		Text:            text,
		Image:           req.Image,
		Caption:         caption,
		ReplyTo:         replyTo,
		Timestamp:       now.In(c.opts.Location).Format("15:04"),
	}, true
}

func joinNotice(number int) string {
	return fmt.Sprintf("👋 Anonymous %d joined the chat", number)
}

func leaveNotice(number int) string {
	return fmt.Sprintf("👋 Anonymous %d left the chat", number)
}
