// Package mirror republishes persisted room messages to an external bus.
package mirror

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Publisher receives every message after it has been persisted.
type Publisher interface {
	Publish(msg *store.Message) error
	Close()
}

// Subject returns the bus subject for a room.
func Subject(room string) string {
	return fmt.Sprintf("chat.room.%s", room)
}

// Record is the JSON body published for each message.
type Record struct {
	Room  string `json:"room"`
	From  string `json:"from"`
	Text  string `json:"text"`
	Type  string `json:"type"`
	TS    int64  `json:"ts"`
	Index int    `json:"index"`
}

// NATS publishes to a NATS server.
type NATS struct {
	conn *nats.Conn
}

// NewNATS connects to url.
func NewNATS(url string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("roomchat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATS{conn: nc}, nil
}

// Publish implements Publisher.
func (n *NATS) Publish(msg *store.Message) error {
	data, err := json.Marshal(Record{
		Room:  msg.Room,
		From:  msg.From,
		Text:  msg.Text,
		Type:  string(msg.Type),
		TS:    msg.Timestamp,
		Index: msg.Index,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := n.conn.Publish(Subject(msg.Room), data); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (n *NATS) Close() {
	_ = n.conn.Drain()
}

// Nop discards everything.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(*store.Message) error { return nil }

// Close implements Publisher.
func (Nop) Close() {}

var (
	_ Publisher = (*NATS)(nil)
	_ Publisher = Nop{}
)
