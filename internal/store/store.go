package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user, room or message does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique name is already taken.
	ErrConflict = errors.New("already exists")
)

// User represents an account that can log in.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room is the durable record of a chat room.
type Room struct {
	Name      string
	Private   bool
	Allowed   []string
	Muted     []string
	Creator   string
	CreatedAt time.Time
}

// HasAllowed reports whether username is on the allowed list.
func (r *Room) HasAllowed(username string) bool {
	return contains(r.Allowed, username)
}

// IsMuted reports whether username is on the muted list.
func (r *Room) IsMuted(username string) bool {
	return contains(r.Muted, username)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// MessageType classifies a persisted message.
type MessageType string

const (
	MessageTypeChat      MessageType = "chat"
	MessageTypeBroadcast MessageType = "broadcast"
	MessageTypeFile      MessageType = "file"
)

// SenderBroadcast is the sender name used for moderator broadcasts.
const SenderBroadcast = "Broadcast"

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Room      string
	From      string
	Text      string
	Type      MessageType
	Timestamp int64 // Unix milliseconds

	// Index is the message's position in its room's log when it was read or appended.
	// Deletions shift later messages down.
	Index int
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser inserts a user. Usernames are unique case-insensitively; a clash returns ErrConflict.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUser retrieves a user by exact username.
	GetUser(ctx context.Context, username string) (*User, error)

	// UserExists reports whether a username is taken, ignoring case.
	UserExists(ctx context.Context, username string) (bool, error)

	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)

	// DeleteUser removes a user, matching the name case-insensitively.
	DeleteUser(ctx context.Context, username string) error
}

// RoomStore is the durable room registry.
type RoomStore interface {
	// CreateRoom inserts a new room; ErrConflict if the name is taken.
	CreateRoom(ctx context.Context, room *Room) error

	// GetRoom retrieves a room by name.
	GetRoom(ctx context.Context, name string) (*Room, error)

	// ListRooms returns every room ordered by creation.
	ListRooms(ctx context.Context) ([]*Room, error)

	// UpdateRoom loads a room, applies fn and writes the result back inside one transaction.
	// If fn returns an error nothing is written.
	UpdateRoom(ctx context.Context, name string, fn func(*Room) error) (*Room, error)

	// DeleteRoom removes the room and purges its messages atomically.
	DeleteRoom(ctx context.Context, name string) error
}

// MessageStore is the durable per-room message log.
type MessageStore interface {
	// AppendMessage adds msg to the end of its room's log and sets msg.ID and msg.Index.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the whole log of a room in append order.
	ListMessages(ctx context.Context, room string) ([]*Message, error)

	// DeleteMessageAt removes the message at position index of the room's log.
	// authorize is called with the message before deletion; its error aborts the delete.
	DeleteMessageAt(ctx context.Context, room string, index int, authorize func(*Message) error) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
