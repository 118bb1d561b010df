package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const (
	errCodeInvalidMessage     = "invalid_message"
	errCodeUnsupportedVersion = "unsupported_version"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand maps every inbound type except join, which the handler
// authenticates before it reaches the core.
func inboundToCommand(inbound proto.Inbound) (core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if err := decodeData(inbound.Data, &leave); err != nil {
			return core.Command{}, badRequest("invalid leave payload")
		}
		return core.Command{Kind: core.CommandLeave, UserID: leave.UserID}, nil
	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := decodeData(inbound.Data, &msg); err != nil {
			return core.Command{}, badRequest("invalid send_message payload")
		}
		kind := core.ContentKind(msg.Type)
		if kind == "" {
			kind = core.KindText
		}
		return core.Command{
			Kind: core.CommandSendMessage,
			Draft: core.Draft{
				Body:      msg.Body,
				Kind:      kind,
				Encrypted: msg.Encrypted,
				ClientRef: msg.ClientRef,
			},
		}, nil
	case proto.InboundTypeStartTyping:
		var typing proto.TypingData
		if err := decodeData(inbound.Data, &typing); err != nil {
			return core.Command{}, badRequest("invalid start_typing payload")
		}
		return core.Command{Kind: core.CommandStartTyping, UserID: typing.UserID}, nil
	case proto.InboundTypeStopTyping:
		var typing proto.TypingData
		if err := decodeData(inbound.Data, &typing); err != nil {
			return core.Command{}, badRequest("invalid stop_typing payload")
		}
		return core.Command{Kind: core.CommandStopTyping, UserID: typing.UserID}, nil
	default:
		return core.Command{}, &proto.Error{Code: errCodeInvalidMessage, Msg: "unknown message type"}
	}
}

// decodeData tolerates an absent payload for commands whose fields are optional.
func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func messageToProto(m core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:        m.ID,
		Room:      m.Room,
		Seq:       m.Seq,
		UserID:    m.AuthorID,
		UserName:  m.AuthorName,
		Body:      m.Body,
		Type:      string(m.Kind),
		Encrypted: m.Encrypted,
		ClientRef: m.ClientRef,
		TS:        m.CreatedAt.UnixMilli(),
	}
}

func messagesToProto(msgs []core.Message) []proto.EventMessage {
	out := make([]proto.EventMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToProto(m))
	}
	return out
}

func userToProto(u core.User) proto.EventUser {
	return proto.EventUser{
		ID:       u.ID,
		Name:     u.Name,
		Online:   u.Online,
		LastSeen: u.LastSeen.UnixMilli(),
	}
}

func event(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventMessage:
		return event(proto.EventNameMessage, messageToProto(ev.Message))
	case core.EventUserJoined:
		return event(proto.EventNameUserJoined, proto.EventUserJoined{
			Room: ev.Room,
			User: userToProto(ev.User),
		})
	case core.EventUserLeft:
		return event(proto.EventNameUserLeft, proto.EventUserLeft{
			Room:   ev.Room,
			UserID: ev.UserID,
		})
	case core.EventUserTyping:
		return event(proto.EventNameUserTyping, proto.EventUserTyping{
			Room:   ev.Room,
			UserID: ev.Typing.UserID,
			Name:   ev.Typing.Name,
		})
	case core.EventUserStopTyping:
		return event(proto.EventNameUserStopTyping, proto.EventUserStopTyping{
			Room:   ev.Room,
			UserID: ev.UserID,
		})
	case core.EventUsersList:
		users := make([]proto.EventUser, 0, len(ev.Users))
		for _, u := range ev.Users {
			users = append(users, userToProto(u))
		}
		return event(proto.EventNameUsersList, proto.EventUsersList{Room: ev.Room, Users: users})
	case core.EventHistory:
		return event(proto.EventNameHistory, proto.EventHistory{
			Room:     ev.Room,
			Messages: messagesToProto(ev.Messages),
		})
	case core.EventNotification:
		if ev.Notice == nil {
			return event(proto.EventNameNotification, proto.EventNotification{Text: "unknown error", Severity: string(core.SeverityError)})
		}
		return event(proto.EventNameNotification, proto.EventNotification{
			Text:     ev.Notice.Text,
			Severity: string(ev.Notice.Severity),
			Code:     ev.Notice.Code,
		})
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
