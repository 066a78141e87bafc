package history

// message kinds
const (
	KindText  = "text"
	KindImage = "image"
	KindReply = "reply"
)

// one chat message as broadcast and kept in history
type ChatEvent struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	AnonymousNumber int     `json:"anonymousNumber"`
	Text            string  `json:"text,omitempty"`
	Image           string  `json:"image,omitempty"`
	Caption         string  `json:"caption,omitempty"`
	ReplyTo         *string `json:"replyTo"`
	Timestamp       string  `json:"timestamp"`
}
