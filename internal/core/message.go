package core

import "github.com/vovakirdan/roomchat/internal/store"

// Message is the core view of a persisted chat message.
type Message struct {
	Room      string
	From      string
	Text      string
	Type      store.MessageType
	Timestamp int64 // Unix milliseconds
	Index     int
}

func messageFromStore(m *store.Message) Message {
	return Message{
		Room:      m.Room,
		From:      m.From,
		Text:      m.Text,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		Index:     m.Index,
	}
}

func messagesFromStore(list []*store.Message) []Message {
	out := make([]Message, 0, len(list))
	for _, m := range list {
		out = append(out, messageFromStore(m))
	}
	return out
}
