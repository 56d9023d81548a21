package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventHistory delivers the full room log to a client upon joining a room.
	EventHistory EventKind = iota
	// EventMessage notifies clients about a persisted message.
	EventMessage
	// EventNotice carries a system notice that is never persisted.
	EventNotice
	// EventMessageDeleted tells subscribers a log entry was removed.
	EventMessageDeleted
	// EventError notifies a client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	Text     string    // EventNotice
	Index    int       // EventMessageDeleted
	Message  Message   // EventMessage
	Messages []Message // EventHistory
	Error    *CoreError
}
