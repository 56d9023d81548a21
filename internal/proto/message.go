package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin          = "join"
	InboundTypeChat          = "chat"
	InboundTypeDeleteMessage = "deleteMessage"
	InboundTypeBroadcast     = "broadcast"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventHistory        = "history"
	EventMessage        = "message"
	EventNotice         = "notice"
	EventMessageDeleted = "messageDeleted"
)

// JoinData makes a room the connection's active room.
type JoinData struct {
	Room string `json:"room"`
}

// ChatData is a line of text for the active room.
type ChatData struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// DeleteMessageData removes the message at Index from Room's log.
type DeleteMessageData struct {
	Room  string `json:"room"`
	Index *int   `json:"index"`
}

// BroadcastData is a moderator broadcast to every room.
type BroadcastData struct {
	Text string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventChatMessage is a persisted room message.
type EventChatMessage struct {
	Room  string `json:"room"`
	From  string `json:"from"`
	Text  string `json:"text"`
	TS    int64  `json:"ts"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// EventHistoryData replays a room's log on join.
type EventHistoryData struct {
	Room     string             `json:"room"`
	Messages []EventChatMessage `json:"messages"`
}

// EventNoticeData is a system notice. It is never persisted.
type EventNoticeData struct {
	Room string `json:"room,omitempty"`
	Text string `json:"text"`
}

// EventMessageDeletedData tells subscribers a log entry was removed.
type EventMessageDeletedData struct {
	Room  string `json:"room"`
	Index int    `json:"index"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
