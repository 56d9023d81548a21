package http

import (
	"encoding/json"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, badRequest("invalid join payload")
		}
		if join.Room == "" {
			return nil, badRequest("room is required")
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: join.Room}, nil
	case proto.InboundTypeChat:
		var chat proto.ChatData
		if err := json.Unmarshal(inbound.Data, &chat); err != nil {
			return nil, badRequest("invalid chat payload")
		}
		return &core.Command{Kind: core.CommandChat, Room: chat.Room, Text: chat.Text}, nil
	case proto.InboundTypeDeleteMessage:
		var del proto.DeleteMessageData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, badRequest("invalid deleteMessage payload")
		}
		if del.Room == "" || del.Index == nil || *del.Index < 0 {
			return nil, badRequest("room and index are required")
		}
		return &core.Command{Kind: core.CommandDeleteMessage, Room: del.Room, Index: *del.Index}, nil
	case proto.InboundTypeBroadcast:
		var b proto.BroadcastData
		if err := json.Unmarshal(inbound.Data, &b); err != nil {
			return nil, badRequest("invalid broadcast payload")
		}
		return &core.Command{Kind: core.CommandBroadcast, Text: b.Text}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func chatMessage(m core.Message) proto.EventChatMessage {
	return proto.EventChatMessage{
		Room:  m.Room,
		From:  m.From,
		Text:  m.Text,
		TS:    m.Timestamp,
		Type:  string(m.Type),
		Index: m.Index,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  chatMessage(event.Message),
		}
	case core.EventHistory:
		messages := make([]proto.EventChatMessage, 0, len(event.Messages))
		for _, m := range event.Messages {
			messages = append(messages, chatMessage(m))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data: proto.EventHistoryData{
				Room:     event.Room,
				Messages: messages,
			},
		}
	case core.EventNotice:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNotice,
			Data:  proto.EventNoticeData{Room: event.Room, Text: event.Text},
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.EventMessageDeletedData{Room: event.Room, Index: event.Index},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
