package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds the session to a room as the given user.
	CommandJoin CommandKind = iota
	// CommandLeave removes the session's user from its room.
	CommandLeave
	// CommandSendMessage relays a chat message to room participants.
	CommandSendMessage
	// CommandStartTyping marks the session's user as typing.
	CommandStartTyping
	// CommandStopTyping clears the session's typing indicator.
	CommandStopTyping
)

// Command represents an action requested by a client.
type Command struct {
	Kind   CommandKind
	Room   string
	User   User   // CommandJoin
	UserID string // CommandLeave, CommandStartTyping, CommandStopTyping
	Draft  Draft  // CommandSendMessage
}
