package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage notifies clients about a chat message in a room.
	EventMessage EventKind = iota
	// EventUserJoined notifies clients about a user joining a room.
	EventUserJoined
	// EventUserLeft notifies clients about a user leaving a room.
	EventUserLeft
	// EventUserTyping notifies clients that a user started or keeps typing.
	EventUserTyping
	// EventUserStopTyping notifies clients that a user stopped typing.
	EventUserStopTyping
	// EventUsersList delivers the current member list to a joining client.
	EventUsersList
	// EventHistory delivers recent message history to a joining client.
	EventHistory
	// EventNotification reports a problem or notice to a single client.
	EventNotification
)

var eventNames = [...]string{
	EventMessage:        "message",
	EventUserJoined:     "user_joined",
	EventUserLeft:       "user_left",
	EventUserTyping:     "user_typing",
	EventUserStopTyping: "user_stop_typing",
	EventUsersList:      "users_list",
	EventHistory:        "history",
	EventNotification:   "notification",
}

func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Room     string
	UserID   string     // EventUserLeft, EventUserStopTyping
	User     User       // EventUserJoined
	Typing   TypingUser // EventUserTyping
	Message  Message    // EventMessage
	Users    []User     // EventUsersList
	Messages []Message  // EventHistory
	Notice   *Notification
}

// Notification is a message addressed to one session only.
type Notification struct {
	Text     string
	Severity Severity
	Code     string
}

func notificationEvent(room string, err *CoreError) *Event {
	return &Event{
		Kind: EventNotification,
		Room: room,
		Notice: &Notification{
			Text:     err.Message,
			Severity: err.Severity,
			Code:     err.Code,
		},
	}
}
