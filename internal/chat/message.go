// Package chat implements the session and room-routing core of the chat
// server: the message and room model, the registries that route broadcasts,
// and the per-connection protocol session.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// SystemSender is the sender name stamped on server-generated notices such
// as join and leave announcements.
const SystemSender = "System"

// Message is one chat utterance. A Message is immutable once constructed
// and is copied by value into every recipient's delivery queue.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a Message with a fresh ID and the current time.
// IDs are unique per message but carry no ordering.
func NewMessage(room, sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Room:      room,
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// newSystemMessage creates a server-authored notice addressed to a room.
func newSystemMessage(room, content string) Message {
	return NewMessage(room, SystemSender, content)
}
