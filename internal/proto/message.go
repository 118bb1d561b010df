package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin        = "join"
	InboundTypeLeave       = "leave"
	InboundTypeSendMessage = "send_message"
	InboundTypeStartTyping = "start_typing"
	InboundTypeStopTyping  = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage        = "message"
	EventNameUserJoined     = "user_joined"
	EventNameUserLeft       = "user_left"
	EventNameUserTyping     = "user_typing"
	EventNameUserStopTyping = "user_stop_typing"
	EventNameUsersList      = "users_list"
	EventNameHistory        = "history"
	EventNameNotification   = "notification"
)

// UserData identifies a participant.
type UserData struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// JoinData binds the connection to a room as the given user.
type JoinData struct {
	Room     string   `json:"room"`
	User     UserData `json:"user"`
	Token    string   `json:"token,omitempty"`
	Protocol int      `json:"protocol,omitempty"`
}

// LeaveData leaves the current room.
type LeaveData struct {
	UserID string `json:"user_id"`
}

// SendMessageData is a chat message from the client, without id or timestamp.
type SendMessageData struct {
	Body      string `json:"body"`
	Type      string `json:"type,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

// TypingData starts or stops a typing indicator.
type TypingData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a chat message relayed to every room member.
type EventMessage struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	Seq       int64  `json:"seq"`
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	Encrypted bool   `json:"encrypted"`
	ClientRef string `json:"client_ref,omitempty"`
	TS        int64  `json:"ts"`
}

// EventUser describes a present user.
type EventUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen"`
}

// EventUserJoined notifies that a user joined a room.
type EventUserJoined struct {
	Room string    `json:"room"`
	User EventUser `json:"user"`
}

// EventUserLeft notifies that a user left a room.
type EventUserLeft struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
}

// EventUserTyping notifies that a user is composing.
type EventUserTyping struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// EventUserStopTyping notifies that a user stopped composing.
type EventUserStopTyping struct {
	Room   string `json:"room"`
	UserID string `json:"user_id"`
}

// EventUsersList is the member snapshot sent to a joining client.
type EventUsersList struct {
	Room  string      `json:"room"`
	Users []EventUser `json:"users"`
}

// EventHistory carries recent messages to a joining client.
type EventHistory struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// EventNotification is addressed to a single client.
type EventNotification struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
	Code     string `json:"code,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
