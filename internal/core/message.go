package core

import (
	"time"

	"github.com/vovakirdan/relaychat-server/internal/utils"
)

// SystemSender is the sender id of server-generated notices.
const SystemSender = "SYSTEM"

// TimestampLayout is the display layout of message timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// MessageType classifies a message.
type MessageType int

const (
	MessageDirect MessageType = iota
	MessageChannel
	MessageFriendRequest
	MessagePresence
	MessageJoin
	MessageLeave
)

// Message is the domain model for a chat message. Values are immutable once built.
type Message struct {
	ID        string
	From      string
	To        string
	Body      string
	Type      MessageType
	CreatedAt time.Time
}

// NewMessage builds a message with a fresh id.
func NewMessage(from, to, body string, typ MessageType, createdAt time.Time) Message {
	return Message{
		ID:        utils.NewID(),
		From:      from,
		To:        to,
		Body:      body,
		Type:      typ,
		CreatedAt: createdAt,
	}
}

// WithTimestamp returns a copy of the message stamped with ts.
func (m Message) WithTimestamp(ts time.Time) Message {
	m.CreatedAt = ts
	return m
}

// IsSystem reports whether the message was generated by the server.
func (m Message) IsSystem() bool {
	return m.From == SystemSender
}

// FormattedTimestamp renders CreatedAt with TimestampLayout.
func (m Message) FormattedTimestamp() string {
	return m.CreatedAt.Format(TimestampLayout)
}
