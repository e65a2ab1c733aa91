package refwatcher

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one chat line delivered by a chat gateway.
type ChatMessage struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
	Text    string `json:"text"`
	// Addressed is set when the line was directed at the bot. Text then holds
	// the line with the bot's address prefix removed.
	Addressed bool `json:"addressed"`
	// Public is false for private messages.
	Public bool `json:"public"`
}

// Validate checks the fields the handler relies on.
func (m *ChatMessage) Validate() error {
	if m.Nick == "" {
		return errors.New("nick is required")
	}
	if m.Public && m.Channel == "" {
		return errors.New("channel is required for public messages")
	}
	return nil
}

// Reply is one line for the gateway to post.
type Reply struct {
	ID        string    `json:"id"`
	InReplyTo string    `json:"in_reply_to,omitempty"`
	Channel   string    `json:"channel"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// NewReply builds a reply to msg. Private replies go back to the sender.
func NewReply(msg *ChatMessage, text string) *Reply {
	target := msg.Channel
	if !msg.Public {
		target = msg.Nick
	}
	return &Reply{
		ID:        uuid.NewString(),
		InReplyTo: msg.ID,
		Channel:   target,
		Text:      text,
		SentAt:    time.Now().UTC(),
	}
}
