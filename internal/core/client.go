package core

import "sync"

// CloseReason says why the hub dropped a client.
type CloseReason int

const (
	// CloseUnregistered is a normal disconnect initiated by the transport.
	CloseUnregistered CloseReason = iota
	// CloseKicked means a moderator kicked the client.
	CloseKicked
	// CloseSlowConsumer means the client's event buffer overflowed.
	CloseSlowConsumer
	// CloseShutdown means the hub stopped.
	CloseShutdown
	// CloseAccountDeleted means the client's account was removed.
	CloseAccountDeleted
)

const (
	commandBuffer = 8
	eventBuffer   = 64
)

// Client is a chat participant as seen by the core layer.
type Client struct {
	ID        string
	Name      string
	SessionID string
	Commands  chan *Command
	Events    chan *Event

	// room is the single active room. Owned by the hub loop.
	room string

	done      chan struct{}
	closeOnce sync.Once
	reason    CloseReason
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name, sessionID string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:        id,
		Name:      name,
		SessionID: sessionID,
		Commands:  make(chan *Command, commandBuffer),
		Events:    make(chan *Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// Done is closed once the hub stops serving the client.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason is valid after Done is closed.
func (c *Client) CloseReason() CloseReason {
	<-c.done
	return c.reason
}

func (c *Client) close(reason CloseReason) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// send delivers without blocking. It reports false when the buffer is full.
func (c *Client) send(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
