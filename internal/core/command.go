package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom makes a room the client's single active room.
	CommandJoinRoom CommandKind = iota
	// CommandChat submits a line of text to the active room.
	CommandChat
	// CommandDeleteMessage removes a message from a room's log.
	CommandDeleteMessage
	// CommandBroadcast sends a moderator broadcast to every room.
	CommandBroadcast
)

// Command represents an action requested by a client.
type Command struct {
	Kind  CommandKind
	Room  string
	Text  string
	Index int
}
